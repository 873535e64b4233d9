package validator

import (
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

const maxTitleLength = 256

// ValidatePublish checks an incoming publish request
func ValidatePublish(userID uuid.UUID, title string) ValidationErrors {
	var errs ValidationErrors
	if userID == uuid.Nil {
		errs.Add("user_id", "is required")
	}
	if strings.TrimSpace(title) == "" {
		errs.Add("title", "is required")
	} else if len(title) > maxTitleLength {
		errs.Add("title", "must be at most 256 characters")
	}
	return errs
}
