package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in messages are the JSON names the client sent.
type Validator struct {
    v *validator.Validate
}

// NewValidator builds the request validator.
func NewValidator() *Validator {
    v := validator.New()
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return err
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        if fe.Param() != "" {
            msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
        } else {
            msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
        }
    }
    return errors.New(strings.Join(msgs, "; "))
}
