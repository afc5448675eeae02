package password_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/password"
)

func TestValidateRejectsShortPassword(t *testing.T) {
	result := password.DefaultValidator().Validate("Ab1!x")
	require.False(t, result.IsValid)
	require.NotEmpty(t, result.Errors)
}

func TestValidateCountsRunesNotBytes(t *testing.T) {
	// 8 characters but 14 bytes, with all four classes present.
	result := password.DefaultValidator().Validate("Пароль1!")
	require.False(t, result.IsValid)
	require.Contains(t, result.Errors, "password must be at least 12 characters")
}

func TestValidateRejectsMissingClasses(t *testing.T) {
	v := password.DefaultValidator()

	for _, tc := range []struct {
		name     string
		password string
	}{
		{"no uppercase", "lowercase-only-7#2"},
		{"no lowercase", "UPPERCASE-ONLY-7#2"},
		{"no digit", "NoDigitsHere!!abc"},
		{"no symbol", "NoSymbolsHere77abc"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := v.Validate(tc.password)
			require.False(t, result.IsValid)
		})
	}
}

func TestValidateRejectsPredictablePassword(t *testing.T) {
	// Meets every class rule but is a dictionary pattern.
	result := password.DefaultValidator().Validate("Password123!")
	require.False(t, result.IsValid)
	require.NotEmpty(t, result.Errors)
}

func TestValidateAcceptsStrongPassword(t *testing.T) {
	result := password.DefaultValidator().Validate("vK9#mTqw!2zL-px7")
	require.True(t, result.IsValid, "errors: %v", result.Errors)
	require.Empty(t, result.Errors)
	require.GreaterOrEqual(t, result.Score, 2)
}
