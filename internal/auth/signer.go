package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// SignerConfig carries the signing material and token lifetimes. It is
// assembled once at startup; the signer never reads the environment.
type SignerConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionClaims are the claims embedded in an access token. The user id
// travels as the registered subject.
type SessionClaims struct {
	LoginName   string   `json:"login_name"`
	FullName    string   `json:"full_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenSigner builds and validates HS256 session tokens.
type TokenSigner struct {
	cfg     SignerConfig
	secret  []byte
	now     func() time.Time
	strict  *jwt.Parser
	lenient *jwt.Parser
}

// SignerOption configures TokenSigner construction.
type SignerOption func(*TokenSigner)

// WithSignerClock overrides the time source (useful for tests).
func WithSignerClock(fn func() time.Time) SignerOption {
	return func(s *TokenSigner) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenSigner validates cfg and constructs a signer.
func NewTokenSigner(cfg SignerConfig, opts ...SignerOption) (*TokenSigner, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	s := &TokenSigner{
		cfg:    cfg,
		secret: []byte(cfg.Secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Only HS256 is ever accepted; a token declaring another algorithm is
	// rejected before signature verification.
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	s.strict = jwt.NewParser(
		methods,
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	s.lenient = jwt.NewParser(methods, jwt.WithoutClaimsValidation())
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenSigner) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenSigner) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// Build signs an access token for the user carrying one claim per granted
// permission. Returns the compact token and its expiry.
func (s *TokenSigner) Build(user *UserAccount, permissions []string) (string, time.Time, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.cfg.AccessTTL)
	claims := &SessionClaims{
		LoginName:   user.LoginName,
		FullName:    user.FullName,
		Email:       user.Email,
		Phone:       user.Phone,
		Permissions: dedupeCodes(permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ExtractPrincipal validates signature, algorithm, issuer, audience, and
// expiry, and returns the full claim set. Any failure is ErrInvalidToken;
// no partial claims are ever returned.
func (s *TokenSigner) ExtractPrincipal(token string) (*SessionClaims, error) {
	return s.parse(token, s.strict)
}

// ExtractPrincipalAllowExpired validates everything ExtractPrincipal does
// except expiry. The refresh flow uses it so that an expired access token
// can still seed a rotation; the refresh token itself gates the operation.
func (s *TokenSigner) ExtractPrincipalAllowExpired(token string) (*SessionClaims, error) {
	claims, err := s.parse(token, s.lenient)
	if err != nil {
		return nil, err
	}
	// The lenient parser checks signature and algorithm only; issuer and
	// audience still have to match.
	if claims.Issuer != s.cfg.Issuer {
		return nil, ErrInvalidToken
	}
	if !hasAudience(claims.Audience, s.cfg.Audience) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenSigner) parse(raw string, parser *jwt.Parser) (*SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := parser.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func dedupeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	var out []string
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
