package validator

import (
	"log"
	"regexp"

	"mmh_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var icoPattern = regexp.MustCompile(`^\d{8}$`)

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("ico", validateICO)

	mustRegister("is-user-role", stringRule(func(s string) bool { return models.UserRole(s).IsValid() }))
	mustRegister("is-signup-role", stringRule(func(s string) bool { return models.UserRole(s).CanSelfRegister() }))
	mustRegister("is-user-status", stringRule(func(s string) bool { return models.UserStatus(s).IsValid() }))

	mustRegister("is-offer-status", stringRule(func(s string) bool { return models.OfferStatus(s).IsValid() }))
	mustRegister("is-pricing-model", stringRule(func(s string) bool { return models.PricingModel(s).IsValid() }))
	mustRegister("is-media-type", stringRule(func(s string) bool { return models.MediaType(s).IsValid() }))
	mustRegister("is-offer-tag", stringRule(func(s string) bool {
		_, ok := models.ParseOfferTag(s)
		return ok
	}))

	mustRegister("is-order-status", stringRule(func(s string) bool { return models.OrderStatus(s).IsValid() }))
}

// stringRule skips empty values; presence is the job of 'required'.
func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return ok(value)
	}
}

func validateICO(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return icoPattern.MatchString(value)
}
