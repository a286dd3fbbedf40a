package handlers

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tokostore/internal/apperrors"
)

// validationError carries per-field validator failures.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.fields))
}

// ErrorHandler renders every error returned by a handler as
// {"message": ..., "error": ...} with the status of its kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var verr *validationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.fields,
		})
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(fiber.Map{
			"message": ferr.Message,
			"error":   strconv.Itoa(ferr.Code),
		})
	}

	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		logrus.WithError(err).WithFields(logrus.Fields{"method": c.Method(), "path": c.Path()}).Error("request failed")
	}
	return c.Status(kind.HTTPStatus()).JSON(fiber.Map{
		"message": apperrors.MessageOf(err),
		"error":   kind.String(),
	})
}

// bind parses the JSON body into dst and validates it.
func bind(c *fiber.Ctx, validate *validator.Validate, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.Wrap(err, apperrors.KindBadRequest, "invalid request body")
	}
	return check(validate, dst)
}

// bindQuery parses the query string into dst and validates it.
func bindQuery(c *fiber.Ctx, validate *validator.Validate, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return apperrors.Wrap(err, apperrors.KindBadRequest, "invalid query parameters")
	}
	return check(validate, dst)
}

func check(validate *validator.Validate, dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.Wrap(err, apperrors.KindBadRequest, "invalid request")
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return &validationError{fields: fields}
}
