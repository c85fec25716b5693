package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "local nine digits", input: "501234567", want: "966501234567"},
		{name: "with country code", input: "966501234567", want: "966501234567"},
		{name: "formatted", input: "+966 50 123 4567", want: "966501234567"},
		{name: "too short", input: "5012345", wantErr: ErrInvalidPhone},
		{name: "ten digits", input: "0501234567", wantErr: ErrInvalidPhone},
		{name: "landline", input: "112345678", wantErr: ErrNotSaudiMobile},
		{name: "foreign twelve digits", input: "971501234567", wantErr: ErrNotSaudiMobile},
		{name: "empty", input: "", wantErr: ErrInvalidPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithCountryCodeIsLenient(t *testing.T) {
	assert.Equal(t, "966123", WithCountryCode("123"))
	assert.Equal(t, "966501234567", WithCountryCode("+966-501234567"))
}
