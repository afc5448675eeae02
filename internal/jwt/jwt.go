package jwt

import (
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/fabworks/fabworks-auth/internal/domain"
)

// Token type claim values. The refresh secret never signs an access
// token and vice versa, so a token presented at the wrong endpoint fails
// on both the type claim and the signature.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the custom payload carried alongside standard JWT claims.
type Claims struct {
	Email       string `json:"email"`
	OrgID       int64  `json:"org_id"`
	SessionID   string `json:"session_id"`
	TokenType   string `json:"type"`
	Family      string `json:"family,omitempty"`
	MFAVerified bool   `json:"mfa_verified"`
}

// Identity couples verified standard and custom claims.
type Identity struct {
	UserID int64
	Std    gojwt.Claims
	Claims Claims
}

// Generator signs and validates access and refresh tokens with distinct
// HMAC secrets.
type Generator struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewGenerator constructs a JWT generator.
func NewGenerator(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, issuer string) *Generator {
	return &Generator{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (g *Generator) AccessTTL() time.Duration { return g.accessTTL }

// GenerateAccessToken produces a signed short-lived access token.
func (g *Generator) GenerateAccessToken(user domain.User, sessionID string, mfaVerified bool) (string, error) {
	return g.sign(g.accessSecret, user, Claims{
		Email:       user.Email,
		OrgID:       user.OrgID,
		SessionID:   sessionID,
		TokenType:   TypeAccess,
		MFAVerified: mfaVerified,
	}, g.accessTTL)
}

// GenerateRefreshToken produces a signed refresh token bound to a family.
func (g *Generator) GenerateRefreshToken(user domain.User, sessionID, family string) (string, error) {
	return g.sign(g.refreshSecret, user, Claims{
		Email:     user.Email,
		OrgID:     user.OrgID,
		SessionID: sessionID,
		TokenType: TypeRefresh,
		Family:    family,
	}, g.refreshTTL)
}

// ParseAccessToken verifies signature, expiry, issuer, and type.
func (g *Generator) ParseAccessToken(token string) (*Identity, error) {
	return g.parse(g.accessSecret, token, TypeAccess)
}

// ParseRefreshToken verifies signature, expiry, issuer, and type.
func (g *Generator) ParseRefreshToken(token string) (*Identity, error) {
	return g.parse(g.refreshSecret, token, TypeRefresh)
}

func (g *Generator) sign(secret []byte, user domain.User, custom Claims, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

func (g *Generator) parse(secret []byte, token, wantType string) (*Identity, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom Claims
	if err := parsed.Claims(secret, &std, &custom); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if err := std.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now().UTC()}); err != nil {
		return nil, fmt.Errorf("validate claims: %w", err)
	}
	if custom.TokenType != wantType {
		return nil, fmt.Errorf("unexpected token type %q", custom.TokenType)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	return &Identity{UserID: userID, Std: std, Claims: custom}, nil
}
