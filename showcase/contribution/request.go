package contribution

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Request is a showcase contribution as submitted by a
// visitor.
type Request struct {
	Title       string `json:"title"                 validate:"required"`
	Image       string `json:"image"                 validate:"required,base64"`
	ImageExt    string `json:"imageExt"              validate:"required,alphanum,max=8"`
	AuthorName  string `json:"authorName"            validate:"required"`
	AuthorURL   string `json:"authorUrl,omitempty"   validate:"omitempty,url"`
	AuthorEmail string `json:"authorEmail,omitempty" validate:"omitempty,email"`
	URL         string `json:"url"                   validate:"required,url"`
	Challenge   string `json:"challenge"             validate:"required,challenge"`
}

// challengeRe matches a single repository path segment.
var challengeRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(
			validator.WithRequiredStructEnabled(),
		)

		validate.RegisterTagNameFunc(
			func(fld reflect.StructField) string {
				name, _, _ := strings.Cut(
					fld.Tag.Get("json"), ",",
				)
				if name == "-" {
					return ""
				}

				return name
			},
		)

		//nolint:errcheck // tag name is static
		validate.RegisterValidation(
			"challenge",
			func(fl validator.FieldLevel) bool {
				v := fl.Field().String()

				return v != "." && v != ".." &&
					challengeRe.MatchString(v)
			},
		)
	})

	return validate
}

// Validate checks every field rule and returns a
// *ValidationError listing all violations, or nil.
func (r *Request) Validate() error {
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating contribution: %w", err)
	}

	ve := &ValidationError{}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
		})
	}

	return ve
}

// Committer reports the identity to attach to commits.
// ok is true only when both the author name and email
// were supplied.
func (r *Request) Committer() (name, email string, ok bool) {
	if r.AuthorName == "" || r.AuthorEmail == "" {
		return "", "", false
	}

	return r.AuthorName, r.AuthorEmail, true
}

// ImageBytes decodes the base64 image payload.
func (r *Request) ImageBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(r.Image)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	return data, nil
}
