// backend/database/oauth_store.go
package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCodeNotFound signals a ResolveCode miss: the "no such code" answer,
// distinct from a query failure.
var ErrCodeNotFound = errors.New("oauth code not found")

// OAuthStore maps user identities (unis) to opaque bearer codes. A code is
// minted once per uni and is stable thereafter; codes are never reused
// across identities.
type OAuthStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOAuthStore(db *sql.DB, logger *zap.Logger) *OAuthStore {
	return &OAuthStore{db: db, logger: logger}
}

// GetOrCreateCode returns the stable code for uni, minting and persisting a
// new one on first sight. The lookup and insert are not atomic: two racing
// first-time calls for the same uni can both reach the insert. The unique
// index on oauth_data.uni makes the loser fail rather than leaving two live
// codes; sequential calls always return the same code.
func (s *OAuthStore) GetOrCreateCode(uni string) (string, error) {
	var code string
	err := s.db.QueryRow("SELECT code FROM oauth_data WHERE uni = ? LIMIT 1", uni).Scan(&code)
	switch {
	case err == nil:
		return code, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to look up oauth code for %s: %w", uni, err)
	}

	code, err = newCode()
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec("INSERT INTO oauth_data (uni, code) VALUES (?, ?)", uni, code); err != nil {
		return "", fmt.Errorf("failed to insert oauth code for %s: %w", uni, err)
	}

	s.logger.Info("issued new oauth code", zap.String("uni", uni))
	return code, nil
}

// ResolveCode maps a bearer code back to its uni, or ErrCodeNotFound.
func (s *OAuthStore) ResolveCode(code string) (string, error) {
	var uni string
	err := s.db.QueryRow("SELECT uni FROM oauth_data WHERE code = ? LIMIT 1", code).Scan(&uni)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrCodeNotFound
	case err != nil:
		return "", fmt.Errorf("failed to resolve oauth code: %w", err)
	}
	return uni, nil
}

// newCode mints an unguessable bearer token: 32 bytes from the system CSPRNG
// plus a random UUID, URL-safe base64 encoded.
func newCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for oauth code: %w", err)
	}
	u := uuid.New()
	return base64.URLEncoding.EncodeToString(append(buf, u[:]...)), nil
}
