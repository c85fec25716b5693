package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{"postgres", errors.New(`ERROR: duplicate key value violates unique constraint "idx_customers_email" (SQLSTATE 23505)`), true},
		{"sqlite", errors.New("UNIQUE constraint failed: customers.email"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestParseOptionalDate(t *testing.T) {
	got, err := parseOptionalDate(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	blank := "  "
	got, err = parseOptionalDate(&blank)
	require.NoError(t, err)
	assert.Nil(t, got)

	day := "2024-02-29"
	got, err = parseOptionalDate(&day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 29, got.Day())

	bad := "29th of Feb"
	_, err = parseOptionalDate(&bad)
	assert.Error(t, err)
}

func TestValidProbability(t *testing.T) {
	for _, p := range []int{0, 50, 100} {
		assert.True(t, validProbability(&p), p)
	}
	for _, p := range []int{-1, 101} {
		assert.False(t, validProbability(&p), p)
	}
	assert.True(t, validProbability(nil))
}

func TestNoteColumn(t *testing.T) {
	assert.Equal(t, "lead_id", noteColumn("lead"))
	assert.Equal(t, "customer_id", noteColumn("customer"))
	assert.Equal(t, "merchant_id", noteColumn("merchant"))
	assert.Empty(t, noteColumn("deal"))
}
