package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

var (
	EmailPattern         = `^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`
	StudentNumberPattern = `^[A-Za-z0-9\-/]{4,20}$`

	PasswordMinLength = 8
)

// CompiledPatterns caches compiled regex patterns.
var CompiledPatterns = struct {
	Email         *regexp.Regexp
	StudentNumber *regexp.Regexp
}{
	Email:         regexp.MustCompile(EmailPattern),
	StudentNumber: regexp.MustCompile(StudentNumberPattern),
}

// IsValidEmail checks a lower-cased address against EmailPattern.
func IsValidEmail(email string) bool {
	return CompiledPatterns.Email.MatchString(strings.ToLower(strings.TrimSpace(email)))
}

// IsValidStudentNumber checks the student number format.
func IsValidStudentNumber(s string) bool {
	return CompiledPatterns.StudentNumber.MatchString(s)
}

// IsStrongPassword requires PasswordMinLength characters including at least
// one letter and one digit.
func IsStrongPassword(p string) bool {
	if len(p) < PasswordMinLength {
		return false
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// RegisterRules installs the custom tags on a validator instance.
func RegisterRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"studentnumber": func(fl validator.FieldLevel) bool {
			return IsValidStudentNumber(fl.Field().String())
		},
		"strongpassword": func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		},
		"date": func(fl validator.FieldLevel) bool {
			_, err := helpers.ParseDate(fl.Field().String())
			return err == nil
		},
		"clock": func(fl validator.FieldLevel) bool {
			return helpers.ValidClock(fl.Field().String())
		},
		"role": func(fl validator.FieldLevel) bool {
			return models.RoleType(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGinRules installs the custom tags on gin's binding validator.
func RegisterGinRules() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return RegisterRules(v)
}
