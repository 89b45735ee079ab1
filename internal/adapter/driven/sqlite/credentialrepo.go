package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// With a key, secrets are sealed with AES-256-GCM before write; without one
// they are stored as recovered.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores secrets unsealed.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes or nil.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("loot key must be 32 bytes, got %d", len(key))
	}
	return &CredentialRepo{db: db, key: key}, nil
}

// Store records a recovered credential.
func (r *CredentialRepo) Store(ctx context.Context, cred model.Credential) error {
	secret, sealed := cred.Secret, false
	if r.key != nil {
		var err error
		if secret, err = r.seal(cred.Secret); err != nil {
			return err
		}
		sealed = true
	}

	const query = `INSERT INTO credentials
		(run_id, username, secret, sealed, address, port, service_name, protocol, realm, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.RunID, cred.Username, secret, sealed,
		cred.Service.Address, cred.Service.Port, cred.Service.Name, cred.Service.Protocol, cred.Service.Realm,
		cred.Origin,
	)
	if err != nil {
		return fmt.Errorf("store credential for %q: %w", cred.Username, err)
	}
	return nil
}

// ListByRun returns the credentials recorded for a run with unsealed secrets.
func (r *CredentialRepo) ListByRun(ctx context.Context, runID string) ([]model.Credential, error) {
	const query = `SELECT id, run_id, username, secret, sealed, address, port, service_name, protocol, realm, origin, created_at
		FROM credentials WHERE run_id = ? ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var cred model.Credential
		var secret, createdAt string
		var sealed bool
		if err := rows.Scan(&cred.ID, &cred.RunID, &cred.Username, &secret, &sealed,
			&cred.Service.Address, &cred.Service.Port, &cred.Service.Name, &cred.Service.Protocol, &cred.Service.Realm,
			&cred.Origin, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		cred.Secret = secret
		if sealed {
			if cred.Secret, err = r.unseal(secret); err != nil {
				return nil, fmt.Errorf("unseal credential %d: %w", cred.ID, err)
			}
		}

		cred.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for credential %d: %w", cred.ID, err)
		}

		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// seal encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) seal(plaintext string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// unseal decrypts a value produced by seal.
func (r *CredentialRepo) unseal(encoded string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
