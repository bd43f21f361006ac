package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/dialprov/internal/cronset"
	"github.com/alexisbeaulieu97/dialprov/internal/identity"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	stageIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// validatorInstance configures and returns the shared validator instance
// used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("stage_id", func(fl validator.FieldLevel) bool {
			return stageIDPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
			return identity.ValidIdentifier(fl.Field().String())
		})

		_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
			return cronset.ValidateSchedule(fl.Field().String()) == nil
		})

		_ = v.RegisterValidation("regexpone", func(fl validator.FieldLevel) bool {
			re, err := regexp.Compile(fl.Field().String())
			return err == nil && re.NumSubexp() == 1
		})

		_ = v.RegisterValidation("pattern", func(fl validator.FieldLevel) bool {
			_, err := regexp.Compile(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("osversion", func(fl validator.FieldLevel) bool {
			return CanonicalVersion(fl.Field().String()) != ""
		})

		validateInst = v
	})

	return validateInst
}

// convertValidationError normalizes validator errors into ValidationErrors
// naming the YAML path of the offending field.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlPath(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		if hint, ok := tagHints[ve.Tag()]; ok {
			msg += ": " + hint
		}
		return dperrors.NewValidationError(field, msg, err)
	}

	return dperrors.NewValidationError("profile", err.Error(), err)
}

var tagHints = map[string]string{
	"sqlident":  "must be a plain SQL identifier",
	"cronspec":  "must be a five-field schedule or a descriptor such as @reboot",
	"regexpone": "must compile with exactly one capture group",
	"pattern":   "must be a valid regular expression",
	"osversion": "must look like 9 or 9.4",
	"stage_id":  "lowercase letters, digits, '-' and '_' only",
}

func yamlPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}
