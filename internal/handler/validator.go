package handler

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request bodies:
// "side" accepts buy or sell in any case.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("side", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
			case "buy", "sell":
				return true
			}
			return false
		})
	})
}

// bindMessage turns validator output into a short caller-facing message.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return "Missing " + field
		case "side":
			return "Invalid side (use buy or sell)"
		case "email":
			return "Invalid email address"
		}
		return "Invalid " + field
	}
	return "invalid request body"
}
