package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/morezero/json-bridge/pkg/dispatcher"
	"github.com/morezero/json-bridge/pkg/failure"
)

const pagesLogPrefix = "server:pages"

// homePageTemplate is the HTML for the bridge home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>JSON Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>JSON Bridge</h1>
  <p class="meta">Bridge health and the services it publishes.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    {{range $name, $ok := .Health.Checks}}
    <p>{{$name}}: {{if $ok}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    {{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Services</h2>
    {{if not .Services}}
    <p>No services registered.</p>
    {{else}}
    <p>Total services: <span class="stat">{{len .Services}}</span></p>
    <table>
      <thead>
        <tr><th>Service</th><th>Latest version</th><th>Majors</th><th>Versions</th><th>Aliases</th></tr>
      </thead>
      <tbody>
        {{range .Services}}
        <tr>
          <td><a href="/services/{{.Name}}">{{.Name}}</a></td>
          <td>{{.Latest}}</td>
          <td>{{range .Majors}}{{.}} {{end}}</td>
          <td>{{$name := .Name}}{{range .Versions}}<a href="/services/{{$name}}@{{.Version}}">{{.Version}}</a> ({{.Status}}) {{end}}</td>
          <td>{{range .Aliases}}{{.}} {{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// serviceDetailPageTemplate is the HTML for one service version.
const serviceDetailPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Describe.Ref}} - JSON Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; width: 140px; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 0.5rem; }
    section { margin-bottom: 2rem; }
    code { background: #f5f5f5; padding: 0 0.25rem; }
    .back { margin-bottom: 1rem; }
    .actions { margin: 1rem 0; }
    .btn { display: inline-block; padding: 0.5rem 1rem; background: #0066cc; color: #fff; text-decoration: none; border-radius: 4px; }
    .btn:hover { background: #0052a3; }
  </style>
</head>
<body>
  <p class="back"><a href="/">Back to services</a></p>
  <h1>{{.Describe.Ref}}</h1>
  {{if .Describe.Description}}<p class="meta">{{.Describe.Description}}</p>{{end}}
  <p class="actions"><a href="/services/{{.Escaped}}/docs" class="btn">View API (Swagger)</a></p>

  <section>
    <h2>Details</h2>
    <table>
      <tr><th>Name</th><td>{{.Describe.Name}}</td></tr>
      <tr><th>Version</th><td>{{.Describe.Version}}</td></tr>
      <tr><th>Major</th><td>{{.Describe.Major}}</td></tr>
      <tr><th>Status</th><td>{{.Describe.Status}}</td></tr>
      <tr><th>Versions</th><td>{{range .Describe.Versions}}{{.Version}} ({{.Status}}) {{end}}</td></tr>
    </table>
  </section>

  <section>
    <h2>Operations</h2>
    {{if not .Describe.Operations}}
    <p>No operations exposed.</p>
    {{else}}
    {{range .Describe.Operations}}
    <h3>{{.Name}}</h3>
    {{if .Description}}<p>{{.Description}}</p>{{end}}
    <p><code>/api/{{$.Describe.Name}}/{{.Name}}</code>{{if .Result}} returns <code>{{.Result}}</code>{{end}}</p>
    {{if .Params}}
    <table>
      {{range .Params}}
      <tr><th>{{.Name}}</th><td><code>{{.Type}}</code>{{if .Header}} (header){{end}}</td></tr>
      {{end}}
    </table>
    {{end}}
    {{end}}
    {{end}}
  </section>
</body>
</html>
`

// swaggerUIPage is the HTML that embeds Swagger UI from CDN and loads the OpenAPI spec.
const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>API - {{.Ref}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "{{.SpecURL}}",
        dom_id: "#swagger-ui",
        presets: [
          SwaggerUIBundle.presets.apis,
          SwaggerUIBundle.SwaggerUIStandalonePreset
        ]
      });
    };
  </script>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health   *healthReport
	Services []dispatcher.ServiceSummary
}

// handleHome returns an HTTP handler for the bridge home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		data := homeData{
			Health:   s.health(r.Context()),
			Services: dispatcher.List(s.disp.Catalog()),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", pagesLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// serviceDetailData is the data passed to the service detail page template.
type serviceDetailData struct {
	Describe *dispatcher.ServiceDescription
	Escaped  string
}

// handleServiceDetail serves the detail page, the OpenAPI document and the Swagger UI of
// a service reference.
func (s *Server) handleServiceDetail() http.HandlerFunc {
	tmpl := template.Must(template.New("serviceDetail").Parse(serviceDetailPageTemplate))
	swaggerTmpl := template.Must(template.New("swagger").Parse(swaggerUIPage))
	return func(w http.ResponseWriter, r *http.Request) {
		ref := r.PathValue("service")
		cat := s.disp.Catalog()
		entry, err := cat.Resolve(ref)
		if err != nil {
			if failure.KindOf(err) == failure.NotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		describe := dispatcher.Describe(entry, cat.Versions(entry.Name))

		switch r.PathValue("page") {
		case "openapi.json":
			w.Header().Set("Cache-Control", "public, max-age=60")
			writeJSON(w, http.StatusOK, buildOpenAPISpec(describe, s.cfg.HeaderPrefix))
		case "docs":
			scheme := "https"
			if r.TLS == nil {
				scheme = "http"
			}
			specURL := scheme + "://" + r.Host + "/services/" + url.PathEscape(describe.Ref) + "/openapi.json"
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := swaggerTmpl.Execute(w, map[string]string{"Ref": describe.Ref, "SpecURL": specURL}); err != nil {
				slog.Error(fmt.Sprintf("%s - swagger template execute: %v", pagesLogPrefix, err))
			}
		case "":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := tmpl.Execute(w, serviceDetailData{Describe: describe, Escaped: url.PathEscape(describe.Ref)}); err != nil {
				slog.Error(fmt.Sprintf("%s - service detail template execute: %v", pagesLogPrefix, err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		default:
			http.NotFound(w, r)
		}
	}
}

// openAPI3 types for generating documents from service descriptions.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Get    *openAPI3Operation `json:"get,omitempty"`
	Post   *openAPI3Operation `json:"post,omitempty"`
	Put    *openAPI3Operation `json:"put,omitempty"`
	Delete *openAPI3Operation `json:"delete,omitempty"`
	Patch  *openAPI3Operation `json:"patch,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	Parameters  []openAPI3Parameter         `json:"parameters,omitempty"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3Parameter struct {
	Name     string         `json:"name"`
	In       string         `json:"in"`
	Required bool           `json:"required,omitempty"`
	Schema   map[string]any `json:"schema"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]any `json:"schema,omitempty"`
}

// buildOpenAPISpec builds an OpenAPI 3.0 document from a service description. Each
// operation becomes one path. Operations without body parameters are published as GET with
// query parameters; the rest as POST with a JSON object body. Header parameters are
// optional headers under headerPrefix.
func buildOpenAPISpec(d *dispatcher.ServiceDescription, headerPrefix string) *openAPI3Spec {
	paths := make(map[string]openAPI3PathItem)
	for _, op := range d.Operations {
		o := &openAPI3Operation{
			Summary:     op.Name,
			Description: op.Description,
			OperationID: op.Name,
			Responses: map[string]openAPI3Response{
				"200": {
					Description: "Success",
					Content:     map[string]openAPI3MediaType{"application/json": {Schema: map[string]any{}}},
				},
				"204": {Description: "No result"},
				"400": {Description: "A parameter could not be converted"},
				"404": {Description: "No operation matches the supplied parameters"},
				"409": {Description: "More than one operation matches the supplied parameters"},
			},
		}
		if op.Result != "" {
			o.Responses["200"].Content["application/json"] = openAPI3MediaType{Schema: map[string]any{"description": op.Result}}
		}

		properties := make(map[string]any)
		var required []string
		for _, p := range op.Params {
			if p.Header {
				o.Parameters = append(o.Parameters, openAPI3Parameter{
					Name:   headerKey(headerPrefix, p.Name),
					In:     "header",
					Schema: map[string]any{"type": "string", "description": p.Type},
				})
				continue
			}
			properties[p.Name] = map[string]any{"description": p.Type}
			required = append(required, p.Name)
		}
		sort.Strings(required)

		item := openAPI3PathItem{}
		if len(properties) == 0 {
			item.Get = o
		} else {
			o.RequestBody = &openAPI3RequestBody{Content: map[string]openAPI3MediaType{
				"application/json": {Schema: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				}},
			}}
			item.Post = o
		}
		paths["/api/"+d.Name+"/"+op.Name] = item
	}

	desc := d.Description
	if desc == "" {
		desc = "Service " + d.Ref
	}
	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info: openAPI3Info{
			Title:       d.Ref,
			Description: desc,
			Version:     d.Version,
		},
		Paths: paths,
	}
}
