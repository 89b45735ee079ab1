// Package secret implements the two backends that recover stored Veeam
// secrets: the host DPAPI service reached through the remote executor, and
// the legacy static-key AES backend that runs locally.
package secret

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// ErrInvalidBase64 marks input that is not base64-alphabet text.
var ErrInvalidBase64 = errors.New("invalid base64 ciphertext")

// decodeBase64 decodes padded or unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	if !model.ValidBase64(s) {
		return nil, ErrInvalidBase64
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return b, nil
}

// canonicalBase64 re-encodes s as padded standard base64.
func canonicalBase64(s string) (string, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ForStrategy returns the backend for a selected strategy.
func ForStrategy(s model.Strategy, exec driven.RemoteExecutor) (driven.SecretDecrypter, error) {
	switch s.Era {
	case model.EraHostProtection:
		return NewHostService(exec, s.EntropyB64, s.TextUnicode), nil
	case model.EraLegacyKey:
		return NewLegacy(), nil
	}
	return nil, fmt.Errorf("no decrypt backend for era %q", s.Era)
}
