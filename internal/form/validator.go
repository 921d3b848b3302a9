package form

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// custom validation tags & texts
const (
	digitsTag  = "digits"
	digitsText = "{0} must contain only digits"

	requiredTag  = "required"
	requiredText = "{0} is required"

	lenTag  = "len"
	lenText = "{0} must be exactly {1} digits"
)

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Validator wraps a go-playground validator with English messages keyed by
// each field's `label` tag.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator builds a validator with the custom tags and translations
// used by the identity form.
func NewValidator() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use the human label for messages instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(digitsTag, digitsValidation)
	registerTranslation(validate, translator, digitsTag, digitsText)
	registerTranslation(validate, translator, requiredTag, requiredText)
	registerTranslation(validate, translator, lenTag, lenText)

	return &Validator{validate: validate, translator: translator}
}

func sharedValidator() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = NewValidator()
	})
	return defaultValidator
}

// Struct validates any tagged struct and returns its failures in field order.
func (v *Validator) Struct(value any) Result {
	err := v.validate.Struct(value)
	if err == nil {
		return Result{}
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Result{Errors: []FieldError{{Field: "", Message: err.Error()}}}
	}
	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{
			Field:   fe.StructField(),
			Tag:     fe.Tag(),
			Message: capitalize(fe.Translate(v.translator)),
		})
	}
	return Result{Errors: out}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// digitsValidation only allows ASCII digits; validator's "numeric" accepts
// signs and decimals.
func digitsValidation(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
