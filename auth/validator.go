package auth

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	minPasswordLength = 12
	maxPasswordLength = 72
)

// RegisterRequest holds the account creation rules.
type RegisterRequest struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateRegister reports the first broken rule.
// Email problems wrap errors.ErrInvalidEmail, password problems errors.ErrInvalidPassword.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !stderrors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
			return err
		}
		return describe(fieldErrors[0])
	}

	if missing := missingCharacterClasses(req.Password); len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", errors.ErrInvalidPassword, missing)
	}
	return nil
}

func describe(fe validator.FieldError) error {
	if fe.Field() == "Email" {
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: email is required", errors.ErrInvalidEmail)
		case "max":
			return fmt.Errorf("%w: email is longer than %s characters", errors.ErrInvalidEmail, fe.Param())
		default:
			return fmt.Errorf("%w: %q is not an email address", errors.ErrInvalidEmail, fe.Value())
		}
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: password is required", errors.ErrInvalidPassword)
	case "min":
		return fmt.Errorf("%w: at least %d characters", errors.ErrInvalidPassword, minPasswordLength)
	case "max":
		return fmt.Errorf("%w: at most %d characters", errors.ErrInvalidPassword, maxPasswordLength)
	default:
		return fmt.Errorf("%w: %s", errors.ErrInvalidPassword, fe.Tag())
	}
}

// missingCharacterClasses lists the classes a password lacks among
// upper case, lower case, digit and special character.
func missingCharacterClasses(s string) []string {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	var missing []string
	if !hasUpper {
		missing = append(missing, "upper case letter")
	}
	if !hasLower {
		missing = append(missing, "lower case letter")
	}
	if !hasNumber {
		missing = append(missing, "digit")
	}
	if !hasSpecial {
		missing = append(missing, "special character")
	}
	return missing
}
