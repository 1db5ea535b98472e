package router

import (
	"talking-pet/companion/pkg/validator"
)

// AddOpenAPIValidation validates requests against the embedded OpenAPI
// document and serves it at /api/docs/openapi.yaml
func (r *Router) AddOpenAPIValidation() {
	v, err := validator.NewOpenAPIValidator()
	if err != nil {
		r.deps.Logger.LogError(err, "Failed to initialize OpenAPI validator")
		return
	}

	r.Engine.Use(v.Middleware())
	r.Engine.GET("/api/docs/openapi.yaml", validator.Handler())
	r.deps.Logger.Debug("OpenAPI validation enabled")
}
