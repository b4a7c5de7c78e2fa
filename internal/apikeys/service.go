package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenPrefix = "gk_"

// ErrInvalidToken indicates a token that does not match any active key.
var ErrInvalidToken = errors.New("apikeys: invalid token")

// RepositoryPort defines data access methods for API keys.
type RepositoryPort interface {
	CreateKey(ctx context.Context, k Key) (Key, error)
	GetKey(ctx context.Context, id string) (Key, error)
	GetKeyByPrefix(ctx context.Context, prefix string) (Key, error)
	ListKeys(ctx context.Context, organizationID string) ([]Key, error)
	RotateKey(ctx context.Context, id, secretHash string) (Key, error)
	RevokeKey(ctx context.Context, id string) error
}

// Service handles API key lifecycle.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Issue mints a key for an organization. The returned token is shown exactly
// once; only its bcrypt hash is persisted.
func (s *Service) Issue(ctx context.Context, organizationID, name string) (IssuedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IssuedKey{}, errors.New("apikeys: key name required")
	}
	prefix, secret, err := mintSecret()
	if err != nil {
		return IssuedKey{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("apikeys: hash secret: %w", err)
	}
	created, err := s.repo.CreateKey(ctx, Key{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           name,
		Prefix:         prefix,
		SecretHash:     string(hash),
		Version:        1,
		Status:         KeyActive,
	})
	if err != nil {
		return IssuedKey{}, err
	}
	return IssuedKey{Key: created, Token: formatToken(prefix, secret)}, nil
}

// Rotate replaces the secret of an active key and bumps its version. The old
// token stops verifying immediately.
func (s *Service) Rotate(ctx context.Context, id string) (IssuedKey, error) {
	key, err := s.repo.GetKey(ctx, id)
	if err != nil {
		return IssuedKey{}, err
	}
	secret, err := randomHex(24)
	if err != nil {
		return IssuedKey{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("apikeys: hash secret: %w", err)
	}
	rotated, err := s.repo.RotateKey(ctx, key.ID, string(hash))
	if err != nil {
		return IssuedKey{}, err
	}
	return IssuedKey{Key: rotated, Token: formatToken(rotated.Prefix, secret)}, nil
}

// Revoke marks a key revoked. Revoked keys never verify again.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.repo.RevokeKey(ctx, id)
}

// List returns the key records of an organization. Hashes stay internal.
func (s *Service) List(ctx context.Context, organizationID string) ([]Key, error) {
	return s.repo.ListKeys(ctx, organizationID)
}

// Verify checks a presented token against the stored hash. Failures collapse
// into ErrInvalidToken so callers cannot distinguish unknown prefixes from
// wrong secrets.
func (s *Service) Verify(ctx context.Context, token string) (Key, error) {
	prefix, secret, ok := splitToken(token)
	if !ok {
		return Key{}, ErrInvalidToken
	}
	key, err := s.repo.GetKeyByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Key{}, ErrInvalidToken
		}
		return Key{}, err
	}
	if key.Status != KeyActive {
		return Key{}, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)) != nil {
		return Key{}, ErrInvalidToken
	}
	return key, nil
}

func mintSecret() (prefix, secret string, err error) {
	prefix, err = randomHex(6)
	if err != nil {
		return "", "", err
	}
	secret, err = randomHex(24)
	if err != nil {
		return "", "", err
	}
	return prefix, secret, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("apikeys: random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func formatToken(prefix, secret string) string {
	return tokenPrefix + prefix + "." + secret
}

func splitToken(token string) (prefix, secret string, ok bool) {
	rest, found := strings.CutPrefix(token, tokenPrefix)
	if !found {
		return "", "", false
	}
	prefix, secret, found = strings.Cut(rest, ".")
	if !found || prefix == "" || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}
