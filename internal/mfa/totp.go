package mfa

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/fabworks/fabworks-auth/internal/password"
)

const backupCodeBytes = 5

// VerifyTOTP checks a time-based code against the account secret,
// allowing one period of clock skew either side.
func VerifyTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateSecret provisions a new TOTP secret for enrolment.
func GenerateSecret(issuer, account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// GenerateBackupCodes returns n single-use recovery codes and their
// hashes; only the hashes are persisted.
func GenerateBackupCodes(n int) (codes []string, hashes []string, err error) {
	for i := 0; i < n; i++ {
		code, err := password.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, HashBackupCode(code))
	}
	return codes, hashes, nil
}

// HashBackupCode returns the hex SHA-256 of a backup code.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// BackupCodeEqual compares a submitted code against a stored hash in
// constant time.
func BackupCodeEqual(code, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashBackupCode(code)), []byte(storedHash)) == 1
}
