package commsutil

import (
	"encoding/json"
	"testing"
)

const codecTestPrefix = "commsutil:codec_test"

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    string
		wantErr bool
	}{
		{"map", map[string]string{"service": "widgets"}, `{"service":"widgets"}`, false},
		{"nil", nil, "null", false},
		{"raw result", json.RawMessage(`{"id":7}`), `{"id":7}`, false},
		{"channel is not serializable", make(chan int), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error but got nil", codecTestPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
			}
			if string(data) != tt.want {
				t.Errorf("%s - EncodePayload() = %q, want %q", codecTestPrefix, data, tt.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	var target struct {
		Cap    string `json:"cap"`
		Method string `json:"method"`
	}
	if err := DecodePayload([]byte(`{"cap":"widgets@1","method":"getWidget"}`), &target); err != nil {
		t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
	}
	if target.Cap != "widgets@1" || target.Method != "getWidget" {
		t.Errorf("%s - unexpected target %+v", codecTestPrefix, target)
	}

	for _, bad := range []string{"", "{invalid}"} {
		if err := DecodePayload([]byte(bad), &target); err == nil {
			t.Errorf("%s - expected error for %q", codecTestPrefix, bad)
		}
	}
}

func TestDecodeNumbers(t *testing.T) {
	var params map[string]interface{}
	if err := DecodeNumbers([]byte(`{"id":12345678901234567890,"price":"1,5"}`), &params); err != nil {
		t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
	}
	n, ok := params["id"].(json.Number)
	if !ok {
		t.Fatalf("%s - expected json.Number, got %T", codecTestPrefix, params["id"])
	}
	if n.String() != "12345678901234567890" {
		t.Errorf("%s - number lost precision: %s", codecTestPrefix, n)
	}
	if params["price"] != "1,5" {
		t.Errorf("%s - strings must be kept verbatim, got %v", codecTestPrefix, params["price"])
	}
}
