package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"sunsetcast/internal/types"
)

// errCodeValidationInvalidValue covers struct validation failures that are
// not missing-field failures. The prefix maps it to a 400 response.
const errCodeValidationInvalidValue types.ErrorCode = "validation_invalid_value"

// Validator wraps go-playground/validator and translates its field errors
// into structured AppErrors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a struct according to its validate tags. On
// failure it returns a *types.AppError with a per-field details map; the
// code is validation_missing_required_field when a required field is absent,
// validation_invalid_value otherwise.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the input was not a struct. Treat as an
		// internal error since only code paths we control reach here.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	details := make(map[string]any, len(fieldErrs))
	missing := false
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
		if fe.Tag() == "required" {
			missing = true
		}
	}

	code := errCodeValidationInvalidValue
	message := "request failed validation"
	if missing {
		code = types.ErrCodeValidationMissingField
		message = "required field missing"
	}

	appErr := types.NewAppError(code, message, err)
	appErr.Details = details
	return appErr
}
