package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"channel-history/internal/observability"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for OpenAPI validation middleware
type OpenAPIValidatorConfig struct {
	// Spec is the OpenAPI document in YAML or JSON
	Spec []byte
	// ValidateRequests enables request validation
	ValidateRequests bool
	// ValidateResponses logs responses that do not match the document
	ValidateResponses bool
	// SkipPaths are path prefixes that bypass validation
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig validates requests against spec and skips
// the operational endpoints
func DefaultOpenAPIValidatorConfig(spec []byte) OpenAPIValidatorConfig {
	return OpenAPIValidatorConfig{
		Spec:             spec,
		ValidateRequests: true,
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
	}
}

// NewOpenAPIValidator loads and validates the document and returns a
// middleware checking requests and, optionally, responses against it
func NewOpenAPIValidator(config OpenAPIValidatorConfig) (func(http.Handler) http.Handler, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(config.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}

	slog.Info("OpenAPI validation enabled",
		slog.Bool("validate_requests", config.ValidateRequests),
		slog.Bool("validate_responses", config.ValidateResponses))

	v := &openAPIValidator{config: config, router: router}
	return v.middleware, nil
}

type openAPIValidator struct {
	config OpenAPIValidatorConfig
	router routers.Router
}

func (v *openAPIValidator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipPath(r.URL.Path, v.config.SkipPaths) {
			next.ServeHTTP(w, r)
			return
		}

		log := observability.FromContext(r.Context())

		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			if !v.config.ValidateRequests {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("request path not found in OpenAPI document",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))
			writeValidationError(w, http.StatusNotFound, fmt.Sprintf("no operation for %s %s", r.Method, r.URL.Path))
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		if v.config.ValidateRequests {
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				log.Warn("request validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeValidationError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err.Error()))
				return
			}
		}

		if !v.config.ValidateResponses {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// The response is already sent, mismatches are only logged
		err = openapi3filter.ValidateResponse(r.Context(), &openapi3filter.ResponseValidationInput{
			RequestValidationInput: input,
			Status:                 recorder.statusCode,
			Header:                 recorder.Header(),
			Body:                   io.NopCloser(bytes.NewReader(recorder.body)),
		})
		if err != nil {
			log.Warn("response validation failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.statusCode),
				slog.String("error", err.Error()))
		}
	})
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func writeValidationError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// responseRecorder wraps http.ResponseWriter to capture response data
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
