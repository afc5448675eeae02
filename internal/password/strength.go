package password

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// StrengthResult reports the outcome of a strength validation.
type StrengthResult struct {
	IsValid     bool     `json:"is_valid"`
	Score       int      `json:"score"`
	Errors      []string `json:"errors,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Validator enforces the org password policy. Character-class rules and
// the zxcvbn entropy estimate are independent gates; both must pass.
type Validator struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
	RequireSymbol bool
	MinScore      int
}

// DefaultValidator applies the platform baseline policy.
func DefaultValidator() Validator {
	return Validator{
		MinLength:     12,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
		RequireSymbol: true,
		MinScore:      2,
	}
}

// Validate checks the password against length, class, and entropy gates.
func (v Validator) Validate(password string) StrengthResult {
	result := StrengthResult{}

	// Length is counted in runes; a multibyte password must not clear
	// the gate on byte count alone.
	if utf8.RuneCountInString(password) < v.MinLength {
		result.Errors = append(result.Errors, fmt.Sprintf("password must be at least %d characters", v.MinLength))
	}

	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if v.RequireUpper && !hasUpper {
		result.Errors = append(result.Errors, "password must contain an uppercase letter")
	}
	if v.RequireLower && !hasLower {
		result.Errors = append(result.Errors, "password must contain a lowercase letter")
	}
	if v.RequireNumber && !hasNumber {
		result.Errors = append(result.Errors, "password must contain a digit")
	}
	if v.RequireSymbol && !hasSymbol {
		result.Errors = append(result.Errors, "password must contain a special character")
	}

	estimate := zxcvbn.PasswordStrength(password, nil)
	result.Score = estimate.Score
	if estimate.Score < v.MinScore {
		result.Errors = append(result.Errors, "password is too predictable")
		result.Suggestions = append(result.Suggestions, "use a longer passphrase of unrelated words")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}
