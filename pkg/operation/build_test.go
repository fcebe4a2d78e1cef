package operation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type catalog struct{}

func (catalog) GetItem(id int) (string, error) { return "item", nil }
func (catalog) Search(ctx context.Context, q string, limit int) []string { return nil }
func (catalog) Ping() {}
func (catalog) Fail() error { return errors.New("nope") }
func (catalog) Variadic(xs ...int) int { return len(xs) }
func (catalog) Triple() (int, int, error) { return 0, 0, nil }
func (catalog) HTTPStatus() int { return 200 }

type declared struct{}

func (declared) Save(item string, tenant string) string { return item + "@" + tenant }
func (declared) Declarations() []Declaration {
	return []Declaration{{
		Method: "Save",
		Alias:  "store",
		Params: []ParamDeclaration{{Name: "item"}, {Name: "tenant", Header: true}},
	}}
}

func find(t *testing.T, svc *Service, method string) *Descriptor {
	t.Helper()
	for _, d := range svc.Operations {
		if d.Method == method {
			return d
		}
	}
	t.Fatalf("operation:build_test - method %s not described", method)
	return nil
}

func TestBuild_Defaults(t *testing.T) {
	svc, err := Build("catalog", catalog{})
	if err != nil {
		t.Fatalf("operation:build_test - unexpected error: %v", err)
	}

	for _, skipped := range []string{"Variadic", "Triple"} {
		for _, d := range svc.Operations {
			if d.Method == skipped {
				t.Errorf("operation:build_test - %s has an unsupported signature and should be skipped", skipped)
			}
		}
	}

	get := find(t, svc, "GetItem")
	if get.Name != "getItem" || !get.Exposed {
		t.Errorf("operation:build_test - expected exposed getItem, got %q exposed=%v", get.Name, get.Exposed)
	}
	if len(get.Params) != 1 || get.Params[0].Name != "arg0" || get.Params[0].Type != reflect.TypeOf(0) {
		t.Errorf("operation:build_test - unexpected params %+v", get.Params)
	}

	search := find(t, svc, "Search")
	if len(search.Params) != 2 {
		t.Fatalf("operation:build_test - context must not be a parameter, got %d params", len(search.Params))
	}
	if search.Result() != reflect.TypeOf([]string(nil)) {
		t.Errorf("operation:build_test - unexpected result type %v", search.Result())
	}

	if find(t, svc, "HTTPStatus").Name != "httpStatus" {
		t.Error("operation:build_test - expected initialism to be lowered as a unit")
	}
}

func TestBuild_Declarer(t *testing.T) {
	svc, err := Build("declared", declared{})
	if err != nil {
		t.Fatalf("operation:build_test - unexpected error: %v", err)
	}
	if len(svc.Operations) != 1 {
		t.Fatalf("operation:build_test - Declarations must not be an operation, got %d", len(svc.Operations))
	}
	d := svc.Operations[0]
	if d.Name != "store" {
		t.Errorf("operation:build_test - expected alias store, got %s", d.Name)
	}
	if got := d.HeaderNames(); len(got) != 1 || got[0] != "tenant" {
		t.Errorf("operation:build_test - unexpected header names %v", got)
	}
	if got := d.BodyNames(); len(got) != 1 || got[0] != "item" {
		t.Errorf("operation:build_test - unexpected body names %v", got)
	}
	if len(svc.Lookup("store")) != 1 || len(svc.Lookup("save")) != 0 {
		t.Error("operation:build_test - lookup must use the alias")
	}
}

func TestBuild_DeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
		want string
	}{
		{"unknown method", Declaration{Method: "Missing"}, "unknown"},
		{"wrong arity", Declaration{Method: "GetItem", Params: []ParamDeclaration{{Name: "a"}, {Name: "b"}}}, "takes 1 parameters"},
		{"unnamed", Declaration{Method: "GetItem", Params: []ParamDeclaration{{}}}, "no name"},
		{"duplicate", Declaration{Method: "Search", Params: []ParamDeclaration{{Name: "q"}, {Name: "q"}}}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("catalog", catalog{}, tt.decl)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("operation:build_test - expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	// The same name on different surfaces is allowed.
	_, err := Build("catalog", catalog{}, Declaration{Method: "Search", Params: []ParamDeclaration{{Name: "q"}, {Name: "q", Header: true}}})
	if err != nil {
		t.Errorf("operation:build_test - header and body may share a name: %v", err)
	}

	if _, err := Build("nil", nil); err == nil {
		t.Error("operation:build_test - expected error for nil target")
	}
}

func TestBuild_Hidden(t *testing.T) {
	svc, err := Build("catalog", catalog{}, Declaration{Method: "Ping", Hidden: true})
	if err != nil {
		t.Fatalf("operation:build_test - unexpected error: %v", err)
	}
	if find(t, svc, "Ping").Exposed {
		t.Error("operation:build_test - hidden operation must not be exposed")
	}
	if len(svc.Lookup("ping")) != 0 {
		t.Error("operation:build_test - lookup must skip hidden operations")
	}
}

type ctxEcho struct{}

type ctxKey struct{}

func (ctxEcho) Echo(ctx context.Context, s string) (string, error) {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v + s, nil
}

func TestDescriptor_Call(t *testing.T) {
	svc, err := Build("echo", ctxEcho{})
	if err != nil {
		t.Fatalf("operation:build_test - unexpected error: %v", err)
	}
	d := svc.Operations[0]
	ctx := context.WithValue(context.Background(), ctxKey{}, "ctx:")
	out, err := d.Call(ctx, []reflect.Value{reflect.ValueOf("hi")})
	if err != nil {
		t.Fatalf("operation:build_test - unexpected error: %v", err)
	}
	if out.String() != "ctx:hi" {
		t.Errorf("operation:build_test - expected ctx:hi, got %s", out.String())
	}

	cat, _ := Build("catalog", catalog{})
	res, err := find(t, cat, "Fail").Call(context.Background(), nil)
	if err == nil || res.IsValid() {
		t.Errorf("operation:build_test - expected error and no value, got %v %v", res, err)
	}
	res, err = find(t, cat, "Ping").Call(context.Background(), nil)
	if err != nil || res.IsValid() {
		t.Errorf("operation:build_test - expected nothing, got %v %v", res, err)
	}
}

func TestLowerCamel(t *testing.T) {
	tests := map[string]string{
		"GetWidget":  "getWidget",
		"ID":         "id",
		"HTTPStatus": "httpStatus",
		"Save":       "save",
		"X":          "x",
	}
	for in, want := range tests {
		if got := LowerCamel(in); got != want {
			t.Errorf("operation:build_test - LowerCamel(%q) = %q, want %q", in, got, want)
		}
	}
	if got := VerbName("get", "widget"); got != "getWidget" {
		t.Errorf("operation:build_test - VerbName = %q", got)
	}
}
