package api

import (
	"net/http"
	"os"
	"strings"
)

// SpecHandler serves the OpenAPI YAML spec from disk so that edits to the
// spec do not require a rebuild.
func SpecHandler(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile("api/openapi.yaml")
	if err != nil {
		http.Error(w, "failed to load spec", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

// SwaggerHandler serves a Swagger UI page that points at the spec. The page
// uses the official CDN-hosted assets so we don't need to check any static
// files into version control.
func SwaggerHandler(w http.ResponseWriter, r *http.Request) {
	html := strings.ReplaceAll(swaggerHTML, "${SPEC_URL}", "/openapi.yaml")
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Swagger UI</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    window.ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
    });
  }
  </script>
</body>
</html>`
