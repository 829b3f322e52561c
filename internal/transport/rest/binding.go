package rest

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dormouse-bot/dormouse/internal/parse"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("timetoken", validTimeToken) //nolint:errcheck
	}
}

// validTimeToken accepts any clock form the parser does: 9pm, 9:00 am, 21:15.
func validTimeToken(fl validator.FieldLevel) bool {
	_, ok := parse.ParseTimeToken(fl.Field().String())
	return ok
}

// isBadTimeToken reports whether a binding error is only about a rejected
// time token. Those keep the conversational retry reply instead of a 400 so
// both surfaces behave the same.
func isBadTimeToken(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() != "timetoken" {
			return false
		}
	}
	return len(verrs) > 0
}
