package handlers

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/tennis-tournament/docs"
)

const swaggerDocPath = "/swagger/doc.json"

// SwaggerDoc serves the embedded OpenAPI document.
func SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(docs.SwaggerJSON)
}

// SwaggerUI serves the interactive API browser.
func SwaggerUI() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(swaggerDocPath))
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"}, nil)
}
