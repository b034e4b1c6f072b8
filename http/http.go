package http

import (
	"compress/gzip"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const (
	// EnvAccessControlAllowOrigin comma separated list of allowed origins.
	// Defaults to any origin.
	EnvAccessControlAllowOrigin = "ACCESS_CONTROL_ALLOW_ORIGIN"
)

// CORS add CORS headers to the response
func CORS(next http.Handler) http.Handler {
	originList := []string{"*"}
	if v := os.Getenv(EnvAccessControlAllowOrigin); v != "" {
		originList = strings.Split(v, ",")
		for i := range originList {
			originList[i] = strings.TrimSpace(originList[i])
		}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   originList,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
	}).Handler(next)
}

// GZIP compress HTML, JSON and text responses when the client accepts it.
// The compressing writer supports http.Flusher, so streamed run pages keep
// updating when compressed.
func GZIP(next http.Handler) http.Handler {
	return middleware.Compress(gzip.DefaultCompression,
		"text/html", "text/plain", "application/json")(next)
}
