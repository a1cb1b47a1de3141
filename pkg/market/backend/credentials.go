package backend

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrNoCredential      = errors.New("no credential available")
	ErrCredentialExpired = errors.New("credential expired")
)

// CredentialProvider supplies the bearer credential for authenticated
// backend calls. The credential is obtained out-of-band (wallet-signature
// login); the provider only presents it. This replaces the ad hoc
// localStorage lookups in earlier clients with an injected capability.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

type staticCredentialProvider struct {
	token string
}

// NewStaticCredentialProvider returns a provider that always presents the
// given token.
func NewStaticCredentialProvider(token string) CredentialProvider {
	return &staticCredentialProvider{token: token}
}

func (p *staticCredentialProvider) Token(_ context.Context) (string, error) {
	if len(p.token) == 0 {
		return "", ErrNoCredential
	}
	return p.token, nil
}

type jwtCredentialProvider struct {
	token  string
	parser *jwt.Parser
	now    func() time.Time
}

// NewJWTCredentialProvider returns a provider that inspects the token's
// expiry claim before presenting it, so a stale session fails fast on the
// client instead of as a backend 401 mid-settlement. The signature is not
// verified; that is the backend's job.
func NewJWTCredentialProvider(token string) CredentialProvider {
	return &jwtCredentialProvider{
		token:  token,
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

func (p *jwtCredentialProvider) Token(_ context.Context) (string, error) {
	if len(p.token) == 0 {
		return "", ErrNoCredential
	}

	claims := jwt.MapClaims{}
	if _, _, err := p.parser.ParseUnverified(p.token, claims); err != nil {
		return "", errors.Wrap(err, "malformed credential")
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil {
		return "", errors.Wrap(err, "invalid expiry claim")
	}
	if expiry != nil && p.now().After(expiry.Time) {
		return "", ErrCredentialExpired
	}

	return p.token, nil
}
