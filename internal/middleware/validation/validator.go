package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hallucination-lab/backend/internal/storage/models"
)

const MaxPromptBytes = 16 * 1024

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		return models.Strategy(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("hallucination_type", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || models.HallucinationType(s).Valid()
	})
	_ = v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || models.Severity(s).Valid()
	})
	_ = v.RegisterValidation("maxprompt", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPromptBytes
	})
	return v
}

// Struct validates a decoded value with the shared validator.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return describe(err)
	}
	return nil
}

// Body parses the JSON request body into dst and validates it. The returned
// error is a *fiber.Error carrying status 400.
func Body(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "strategy":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %v", field, models.Strategies))
		case "maxprompt":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %d bytes", field, MaxPromptBytes))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
