package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 32

var (
	// ErrTokenInvalid is returned for tokens that fail signature, shape or
	// claim checks.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrTokenExpired is returned for structurally valid tokens past their
	// expiry.
	ErrTokenExpired = errors.New("access token expired")
)

// Config holds signing parameters for access tokens.
//
// Config instances are validated once at [NewManager] and treated as
// immutable afterwards.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// AccessClaims is the claim set carried by authkit access tokens.
type AccessClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role,omitempty"`
	OrgID     string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt access TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt leeway must be between 0 and 2 minutes")
	}
	return &Manager{config: cfg}, nil
}

// Issue creates an access token bound to the given session and user at the
// provided issue time. The token expires at issuedAt + AccessTTL.
func (m *Manager) Issue(sessionID, userID, role, orgID string, issuedAt time.Time) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("session id and user id are required")
	}

	claims := AccessClaims{
		SessionID: sessionID,
		Role:      role,
		OrgID:     orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.config.AccessTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies token and returns its claims. Expired tokens yield
// [ErrTokenExpired]; every other failure yields [ErrTokenInvalid].
func (m *Manager) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}
