package security

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdfIterations = 4096
	keyLength       = 32
)

// AccessClaims carries the role grants embedded in an access token
type AccessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC access tokens. The signing key is
// derived from the configured secret and salt, never stored in plain form.
type TokenIssuer struct {
	signingKey []byte
	expiry     time.Duration
}

// NewTokenIssuer derives the signing key and creates an issuer
func NewTokenIssuer(secret, salt string, expiry time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("token expiry must be positive")
	}

	key := pbkdf2.Key([]byte(secret), []byte(salt), pbkdfIterations, keyLength, sha256.New)

	return &TokenIssuer{
		signingKey: key,
		expiry:     expiry,
	}, nil
}

// IssueToken creates a signed token granting the given roles to the subject
func (ti *TokenIssuer) IssueToken(subject string, roles ...Role) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	now := time.Now()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	claims := AccessClaims{
		Roles: names,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// VerifyToken parses and validates a token, returning its claims
func (ti *TokenIssuer) VerifyToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

type tokenGrant struct {
	roles     map[Role]bool
	expiresAt time.Time
}

// TokenAccess is an AccessController fed by verified access tokens. Callers
// are admitted by presenting a token; their grants lapse with the token.
type TokenAccess struct {
	issuer *TokenIssuer
	grants map[string]*tokenGrant
	paused bool
	mu     sync.RWMutex
}

var _ AccessController = (*TokenAccess)(nil)

// NewTokenAccess creates a controller with no admitted callers
func NewTokenAccess(issuer *TokenIssuer) *TokenAccess {
	return &TokenAccess{
		issuer: issuer,
		grants: make(map[string]*tokenGrant),
	}
}

// Admit verifies a token and records its subject's grants until expiry.
// Returns the admitted subject.
func (ta *TokenAccess) Admit(tokenString string) (string, error) {
	claims, err := ta.issuer.VerifyToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("admitting caller: %w", err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", fmt.Errorf("admitting caller: token missing subject or expiry")
	}

	roles := make(map[Role]bool, len(claims.Roles))
	for _, name := range claims.Roles {
		roles[Role(name)] = true
	}

	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.grants[claims.Subject] = &tokenGrant{
		roles:     roles,
		expiresAt: claims.ExpiresAt.Time,
	}

	return claims.Subject, nil
}

// Evict removes a caller's grants before their token expires
func (ta *TokenAccess) Evict(caller string) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	delete(ta.grants, caller)
}

// HasRole reports whether the caller holds an unexpired grant for the role
func (ta *TokenAccess) HasRole(role Role, caller string) bool {
	ta.mu.RLock()
	defer ta.mu.RUnlock()

	grant, ok := ta.grants[caller]
	if !ok {
		return false
	}
	if time.Now().After(grant.expiresAt) {
		return false
	}
	return grant.roles[role]
}

// SetPaused toggles the global pause flag
func (ta *TokenAccess) SetPaused(paused bool) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.paused = paused
}

// IsPaused reports the global pause flag
func (ta *TokenAccess) IsPaused() bool {
	ta.mu.RLock()
	defer ta.mu.RUnlock()
	return ta.paused
}
