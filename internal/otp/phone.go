package otp

import (
	"errors"
	"strings"
)

// SaudiCountryCode is prefixed to local numbers
const SaudiCountryCode = "966"

var (
	// ErrInvalidPhone is returned for numbers that are not 9 or 12 digits long
	ErrInvalidPhone = errors.New("Invalid phone number format")
	// ErrNotSaudiMobile is returned for numbers outside the Saudi mobile range
	ErrNotSaudiMobile = errors.New("Please enter a valid Saudi phone number starting with 5")
)

// Digits strips everything but ASCII digits
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WithCountryCode strips the number and prefixes 966 when absent, without validating it
func WithCountryCode(raw string) string {
	digits := Digits(raw)
	if strings.HasPrefix(digits, SaudiCountryCode) {
		return digits
	}
	return SaudiCountryCode + digits
}

// NormalizePhone validates a Saudi mobile number and returns it as 9665XXXXXXXX
func NormalizePhone(raw string) (string, error) {
	digits := Digits(raw)
	if len(digits) != 9 && len(digits) != 12 {
		return "", ErrInvalidPhone
	}

	phone := WithCountryCode(digits)
	if len(phone) != 12 || !strings.HasPrefix(phone, SaudiCountryCode+"5") {
		return "", ErrNotSaudiMobile
	}
	return phone, nil
}
