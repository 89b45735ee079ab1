package secret

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Key material baked into Veeam ONE builds before 11.0.1.
const (
	legacyPassphrase = "123456789"
	legacyIterations = 1000
	legacyKeyLen     = 16
	legacySaltLen    = 16
	legacyIVLen      = aes.BlockSize
)

var (
	errLegacyTooShort = errors.New("ciphertext shorter than salt and iv")
	errLegacyAlign    = errors.New("ciphertext not a multiple of the block size")
	errLegacyPadding  = errors.New("invalid padding")
)

// Compile-time interface satisfaction check.
var _ driven.SecretDecrypter = (*Legacy)(nil)

// Legacy decrypts [16-byte salt][16-byte IV][AES-128-CBC ciphertext] blobs
// with a key derived from a fixed passphrase. It never contacts the host.
type Legacy struct{}

// NewLegacy creates a Legacy backend.
func NewLegacy() *Legacy { return &Legacy{} }

// Method implements driven.SecretDecrypter.
func (*Legacy) Method() model.Disposition { return model.DispositionAES }

// Decrypt never returns an error; malformed input is a Failed result.
func (*Legacy) Decrypt(_ context.Context, ciphertextB64 string) (model.DecryptResult, error) {
	raw, err := decodeBase64(ciphertextB64)
	if err != nil {
		return model.FailedResult(err), nil
	}
	plaintext, err := decryptLegacy(raw)
	if err != nil {
		return model.FailedResult(err), nil
	}
	return model.Decrypted(string(plaintext)), nil
}

func decryptLegacy(raw []byte) ([]byte, error) {
	if len(raw) < legacySaltLen+legacyIVLen {
		return nil, fmt.Errorf("%w: %d bytes", errLegacyTooShort, len(raw))
	}
	salt := raw[:legacySaltLen]
	iv := raw[legacySaltLen : legacySaltLen+legacyIVLen]
	ciphertext := raw[legacySaltLen+legacyIVLen:]

	plaintext, err := cbcDecrypt(deriveLegacyKey(salt), iv, ciphertext)
	if err != nil {
		return nil, err
	}
	return pkcs7Unpad(plaintext)
}

func deriveLegacyKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(legacyPassphrase), salt, legacyIterations, legacyKeyLen, sha1.New)
}

func cbcDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errLegacyAlign, len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errLegacyPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errLegacyPadding
	}
	if !bytes.Equal(b[len(b)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, errLegacyPadding
	}
	return b[:len(b)-n], nil
}
