package service

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// PushPaymentCurrency is the only currency the push-payment gateway settles in
const PushPaymentCurrency = "KES"

var (
	msisdnPattern   = regexp.MustCompile(`^254\d{9}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateAmount checks that amount is positive with at most two decimal places
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("invalid amount: must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("invalid amount: at most 2 decimal places allowed")
	}
	return nil
}

// ValidateCurrency checks for an upper-case ISO 4217 code
func ValidateCurrency(currency string) error {
	if !currencyPattern.MatchString(currency) {
		return fmt.Errorf("invalid currency %q: must be a 3-letter ISO 4217 code", currency)
	}
	return nil
}

// ValidateMSISDN checks a Kenyan mobile number in international format (2547XXXXXXXX)
func ValidateMSISDN(phone string) error {
	if !msisdnPattern.MatchString(phone) {
		return fmt.Errorf("invalid phone number: must match 254XXXXXXXXX")
	}
	return nil
}

// ValidateEmail checks a bare email address
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid payer email %q", email)
	}
	return nil
}

// ValidateInitiation applies the gateway-specific rules for a new payment attempt
func ValidateInitiation(kind models.GatewayKind, amount decimal.Decimal, currency, payer string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown gateway kind %q", kind)
	}

	var errs []error
	if err := ValidateAmount(amount); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCurrency(currency); err != nil {
		errs = append(errs, err)
	}

	switch kind {
	case models.GatewayKindPushPayment:
		if currency != PushPaymentCurrency {
			errs = append(errs, fmt.Errorf("invalid currency: push payments settle in %s only", PushPaymentCurrency))
		}
		if !amount.IsInteger() {
			errs = append(errs, fmt.Errorf("invalid amount: push payments take whole units"))
		}
		if err := ValidateMSISDN(payer); err != nil {
			errs = append(errs, err)
		}
	case models.GatewayKindOrderCapture:
		if payer != "" {
			if err := ValidateEmail(payer); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
