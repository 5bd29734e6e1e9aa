package types

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// bindingTag is the struct tag gin reads, so the mock API and the client share one rule set
const bindingTag = "binding"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(bindingTag)
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations installs the custom rules used by the form types and
// reports fields by their JSON names. Call it on gin's engine before serving.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return err
	}
	return v.RegisterValidation("imageurl", func(fl validator.FieldLevel) bool {
		return validImageURL(fl.Field().String())
	})
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// checkStruct runs the binding rules on s
func checkStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return AsValidationError(err)
	}
	return nil
}

// AsValidationError turns validator failures into a ValidationError carrying
// one form message per field. Other errors are returned unchanged.
func AsValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return &ValidationError{Fields: fields}
}

var fieldLabels = map[string]string{
	"title":       "Title",
	"description": "Description",
	"body":        "Text",
	"username":    "Username",
	"email":       "Email",
	"password":    "Password",
	"image":       "Image",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("Password needs to be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", label, fe.Param())
	case "email":
		return "Please enter a valid email"
	case "imageurl", "url":
		return "Please enter a valid URL"
	default:
		return label + " is invalid"
	}
}

// validImageURL accepts http(s) URLs and host paths without a scheme
func validImageURL(raw string) bool {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.Contains(u.Host, ".")
}
