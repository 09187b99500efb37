package provisioning

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/wolfeidau/peopleops/internal/models"
)

// Input is the provisioning request body as sent on the wire.
type Input struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	FullName   string  `json:"full_name"`
	Role       string  `json:"role"`
	JobTitle   string  `json:"job_title,omitempty"`
	Department *string `json:"department,omitempty"`
	ManagerID  *string `json:"manager_id,omitempty"`
}

// Request is a validated provisioning request. It only lives for the duration
// of one saga.
type Request struct {
	Email             string // lower-cased
	FirstName         string
	LastName          string
	FullName          string
	Role              models.Role
	JobTitle          string
	Department        *string
	ManagerID         *string
	InitialCredential string
	TenantLabel       string
}

// DecodeInput reads a JSON request body. Malformed JSON is reported as a
// ValidationError on the body, a value of the wrong type on its field.
func DecodeInput(r io.Reader) (*Input, error) {
	var in Input

	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, &ValidationError{Fields: map[string]string{typeErr.Field: "must be a " + typeErr.Type.String()}}
		}
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Fields: map[string]string{"body": "cannot be empty"}}
		}
		return nil, &ValidationError{Fields: map[string]string{"body": "must be a valid JSON object"}}
	}

	if dec.More() {
		return nil, &ValidationError{Fields: map[string]string{"body": "must contain a single JSON object"}}
	}

	return &in, nil
}

// Validate checks every field of in and returns the typed request for the
// given tenant. It makes no remote calls.
func Validate(in *Input, tenantLabel string) (*Request, error) {
	if in == nil {
		return nil, &ValidationError{Fields: map[string]string{"body": "cannot be empty"}}
	}

	normalized := Input{
		Email:      strings.TrimSpace(in.Email),
		Password:   in.Password,
		FullName:   strings.Join(strings.Fields(in.FullName), " "),
		Role:       strings.TrimSpace(in.Role),
		JobTitle:   strings.TrimSpace(in.JobTitle),
		Department: optional(in.Department),
		ManagerID:  optional(in.ManagerID),
	}

	fields := map[string]string{}

	err := validation.ValidateStruct(&normalized,
		validation.Field(&normalized.Email, validation.Required, is.EmailFormat),
		validation.Field(&normalized.Password, validation.Required),
		validation.Field(&normalized.FullName, validation.Required),
		validation.Field(&normalized.Role, validation.Required, validation.By(knownRole)),
	)
	if err != nil {
		var errs validation.Errors
		if !errors.As(err, &errs) {
			return nil, err
		}
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
	}

	if strings.TrimSpace(tenantLabel) == "" {
		fields["tenant_label"] = "cannot be blank"
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	firstName, lastName := splitFullName(normalized.FullName)

	jobTitle := normalized.JobTitle
	if jobTitle == "" {
		jobTitle = models.DefaultJobTitle
	}

	return &Request{
		Email:             strings.ToLower(normalized.Email),
		FirstName:         firstName,
		LastName:          lastName,
		FullName:          normalized.FullName,
		Role:              models.Role(normalized.Role),
		JobTitle:          jobTitle,
		Department:        normalized.Department,
		ManagerID:         normalized.ManagerID,
		InitialCredential: normalized.Password,
		TenantLabel:       tenantLabel,
	}, nil
}

// splitFullName splits on the first whitespace boundary. The last name may be empty.
func splitFullName(fullName string) (string, string) {
	first, last, _ := strings.Cut(fullName, " ")
	return first, last
}

// optional trims a nullable string, treating blank as absent.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// knownRole rejects anything ParseRole does not accept. Blank values are left
// to validation.Required.
func knownRole(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := models.ParseRole(s); err != nil {
		return errors.New("must be one of employee, manager, admin")
	}
	return nil
}
