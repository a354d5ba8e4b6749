package core

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"rainbowcast/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the structured AppError the response layer expects.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with struct-tag validation enabled.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// tagToErrorCode maps a failed validation tag to the error code clients see.
// Tags without a dedicated code report as a missing/invalid field.
func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "latitude":
		return types.ErrCodeValidationInvalidLat
	case "longitude":
		return types.ErrCodeValidationInvalidLon
	default:
		return types.ErrCodeValidationMissingField
	}
}

// ValidateStruct validates the struct's `validate` tags. Failures return an
// AppError coded after the first failing tag and carrying a
// field-to-constraint map in Details; clients see which fields failed and
// why, never reflection noise.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation target is not a struct", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "unexpected validation failure", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		tagToErrorCode(verrs[0].Tag()),
		"request failed validation",
		err,
		details,
	)
}
