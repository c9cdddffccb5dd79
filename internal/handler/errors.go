package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}

// writeError maps service and upstream errors onto the response envelope
func writeError(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	var upstreamErr *client.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		var details interface{}
		if len(validationErr.Fields) > 0 {
			details = validationErr.Fields
		}
		return response.ValidationError(c, validationErr.Message, details)
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotReady),
		errors.Is(err, service.ErrJobTerminal),
		errors.Is(err, service.ErrNotConfirmed):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrNotConfigured):
		return response.UpstreamUnavailable(c, err.Error())
	case errors.Is(err, client.ErrUnauthorized):
		return response.Unauthorized(c, "Upstream rejected the credential")
	case errors.Is(err, client.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	case errors.Is(err, client.ErrUpstreamUnavailable):
		log.Printf("[Handler] %s %s: %v", c.Method(), c.Path(), err)
		return response.UpstreamUnavailable(c, "Upstream service unavailable, try again later")
	case errors.As(err, &upstreamErr), errors.Is(err, service.ErrNoToken):
		return response.UpstreamError(c, err.Error())
	}

	log.Printf("[Handler] %s %s: %v", c.Method(), c.Path(), err)
	return response.ServiceError(c, err.Error())
}
