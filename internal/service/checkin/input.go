package checkin

import (
	"strings"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// CheckinInput holds the parsed fields of a goodnight or goodmorning message.
type CheckinInput struct {
	UserID    string
	Username  string
	RawText   string
	Rating    *int
	TimeToken *string
	Note      *string
	Now       time.Time
}

// Validate checks all fields and collects all errors.
func (i CheckinInput) Validate() error {
	var errs []domain.FieldError

	if strings.TrimSpace(i.UserID) == "" {
		errs = append(errs, domain.FieldError{Field: "user_id", Message: "required"})
	}
	if strings.TrimSpace(i.Username) == "" {
		errs = append(errs, domain.FieldError{Field: "username", Message: "required"})
	}
	if i.Rating != nil && (*i.Rating < 1 || *i.Rating > 10) {
		errs = append(errs, domain.FieldError{Field: "rating", Message: "must be between 1 and 10"})
	}
	if i.Now.IsZero() {
		errs = append(errs, domain.FieldError{Field: "now", Message: "required"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// RatingInput holds a standalone numeric rating message.
type RatingInput struct {
	UserID   string
	Username string
	RawText  string
	Rating   int
	Now      time.Time
}

// Validate checks all fields and collects all errors.
func (i RatingInput) Validate() error {
	var errs []domain.FieldError

	if strings.TrimSpace(i.UserID) == "" {
		errs = append(errs, domain.FieldError{Field: "user_id", Message: "required"})
	}
	if strings.TrimSpace(i.Username) == "" {
		errs = append(errs, domain.FieldError{Field: "username", Message: "required"})
	}
	if i.Rating < 1 || i.Rating > 10 {
		errs = append(errs, domain.FieldError{Field: "rating", Message: "must be between 1 and 10"})
	}
	if i.Now.IsZero() {
		errs = append(errs, domain.FieldError{Field: "now", Message: "required"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
