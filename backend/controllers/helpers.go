package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"trainhub/backend/services"
	"trainhub/backend/utils"
)

var validate = validator.New()

// currentUserID returns the authenticated caller's id stored by the
// auth middleware.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("user_id").(uint)
	return userID
}

// validateStruct runs validator tags and flattens failures into a
// field -> message map for the response envelope.
func validateStruct(input interface{}) map[string]string {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			fields[fieldError.Field()] = "failed on " + fieldError.Tag()
		}
	} else {
		fields["_"] = err.Error()
	}
	return fields
}

// respondServiceError maps the service error taxonomy onto HTTP
// statuses.
func respondServiceError(c *fiber.Ctx, err error) error {
	var precondition *services.PreconditionError
	if errors.As(err, &precondition) {
		return utils.Conflict(c, precondition.Error(), fiber.Map{"missing": precondition.Missing})
	}

	var invalidState *services.InvalidStateError
	if errors.As(err, &invalidState) {
		return utils.Conflict(c, invalidState.Error())
	}

	if errors.Is(err, services.ErrNotFound) {
		return utils.NotFound(c, err.Error())
	}
	if errors.Is(err, services.ErrMissingContext) {
		return utils.BadRequest(c, err.Error())
	}
	return utils.InternalServerError(c, err.Error())
}
