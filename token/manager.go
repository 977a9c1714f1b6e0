package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWT signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrInvalid is returned for tokens failing signature, structure, or
	// kind checks.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned for well-formed, correctly signed tokens past
	// their expiry.
	ErrExpired = errors.New("token expired")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Config carries the signing material and TTL policy for both token kinds.
// Refresh keys default to the access keys when unset.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte

	RefreshPrivateKey []byte
	RefreshPublicKey  []byte

	Issuer string
	Leeway time.Duration
}

// Manager signs and verifies engine tokens. Immutable after NewManager.
type Manager struct {
	config Config
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UID  string `json:"uid"`
	SID  string `json:"sid"`
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It deliberately carries no
// user identity: resolving the user goes through the session.
type RefreshClaims struct {
	SID  string `json:"sid"`
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
		if len(cfg.RefreshPrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.RefreshPrivateKey); err != nil {
				return nil, err
			}
			if _, err := parseEdPublicKey(cfg.RefreshPublicKey); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if len(cfg.RefreshPrivateKey) == 0 {
		cfg.RefreshPrivateKey = cfg.PrivateKey
		cfg.RefreshPublicKey = cfg.PublicKey
	}

	return &Manager{config: cfg}, nil
}

/*
====================================
ISSUANCE
====================================
*/

// IssueAccess signs an access token binding uid to sid.
func (m *Manager) IssueAccess(uid, sid string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UID:  uid,
		SID:  sid,
		Kind: kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.method(), claims)

	signKey, err := m.signKey(m.config.PrivateKey)
	if err != nil {
		return "", err
	}

	return tok.SignedString(signKey)
}

// IssueRefresh signs a refresh token for sid.
func (m *Manager) IssueRefresh(sid string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		SID:  sid,
		Kind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.method(), claims)

	signKey, err := m.signKey(m.config.RefreshPrivateKey)
	if err != nil {
		return "", err
	}

	return tok.SignedString(signKey)
}

/*
====================================
VERIFICATION
====================================
*/

// ParseAccess verifies tokenStr as an access token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	tok, err := m.parse(tokenStr, &AccessClaims{}, m.config.PublicKey, m.config.PrivateKey)
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid || claims.Kind != kindAccess {
		return nil, ErrInvalid
	}
	if claims.UID == "" || claims.SID == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

// ParseRefresh verifies tokenStr as a refresh token. On expiry the decoded
// claims are returned alongside [ErrExpired] so callers can still reach the
// session the dead token pointed at.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	tok, err := m.parse(tokenStr, &RefreshClaims{}, m.config.RefreshPublicKey, m.config.RefreshPrivateKey)
	if err != nil {
		if errors.Is(err, ErrExpired) && tok != nil {
			if claims, ok := tok.Claims.(*RefreshClaims); ok && claims.Kind == kindRefresh {
				return claims, ErrExpired
			}
		}
		return nil, err
	}

	claims, ok := tok.Claims.(*RefreshClaims)
	if !ok || !tok.Valid || claims.Kind != kindRefresh {
		return nil, ErrInvalid
	}
	if claims.SID == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, publicKey, privateKey []byte) (*jwt.Token, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, ErrInvalid
		}
		return m.verifyKey(publicKey, privateKey)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tok, ErrExpired
		}
		return nil, ErrInvalid
	}

	return tok, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey(privateKey []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return privateKey, nil
	default:
		return parseEdPrivateKey(privateKey)
	}
}

func (m *Manager) verifyKey(publicKey, privateKey []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return privateKey, nil
	default:
		return parseEdPublicKey(publicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
