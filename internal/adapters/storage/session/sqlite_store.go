package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	domain "dairysense/internal/domain/session"
)

// dateLayout has a fixed-width fraction so stored timestamps compare correctly as text.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

const nonceSize = 24

// ErrUnseal means a stored token could not be decrypted, usually after a key change.
var ErrUnseal = errors.New("session token could not be unsealed")

// SQLiteStore persists sessions with the API token sealed by secretbox.
type SQLiteStore struct {
	db  SQLDB
	key [32]byte
	now func() time.Time
}

// NewSQLiteStore creates a session store. The secret is hashed into the sealing key.
// PRE: secret is non-empty
// POST: Tokens written by this store can only be read with the same secret
func NewSQLiteStore(db SQLDB, secret []byte) *SQLiteStore {
	return &SQLiteStore{db: db, key: sha256.Sum256(secret), now: time.Now}
}

func (s *SQLiteStore) seal(token string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key), nil
}

func (s *SQLiteStore) unseal(box []byte) (string, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}

// Save persists a session.
// PRE: s.ID and s.APIToken are non-empty
// POST: Session is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, sess domain.Session) error {
	sealed, err := s.seal(sess.APIToken)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session (id, email, sealed_token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, sealed_token=excluded.sealed_token, expires_at=excluded.expires_at`,
		sess.ID, sess.Email, sealed, sess.CreatedAt.UTC().Format(dateLayout), sess.ExpiresAt.UTC().Format(dateLayout))
	return err
}

// Get returns a live session.
// PRE: id is non-empty
// POST: Returns ErrNotFound for unknown or expired sessions
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Session, error) {
	var sess domain.Session
	var sealed []byte
	var createdAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, sealed_token, created_at, expires_at FROM session WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Email, &sealed, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	if sess.Expired(s.now()) {
		return domain.Session{}, ErrNotFound
	}
	if sess.APIToken, err = s.unseal(sealed); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = ?`, id)
	return err
}

// DeleteExpired removes sessions past their expiry.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE expires_at <= ?`, s.now().UTC().Format(dateLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
