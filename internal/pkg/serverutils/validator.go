package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError carries a flattened list of field violations so the error
// middleware can answer 400 with something readable.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// ValidateRequest runs struct tag validation on a request body.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	fields := []string{}
	if errors.As(err, &violations) {
		for _, v := range violations {
			fields = append(fields, fmt.Sprintf("%s failed on %s", v.Field(), v.Tag()))
		}
	} else {
		fields = append(fields, err.Error())
	}
	return &ValidationError{Fields: fields}
}
