package driven

import (
	"context"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

// SecretDecrypter recovers plaintext from a base64 ciphertext. Per-item
// failures are reported in the DecryptResult; a non-nil error means the
// backend itself is unusable and the run must stop.
type SecretDecrypter interface {
	Method() model.Disposition
	Decrypt(ctx context.Context, ciphertextB64 string) (model.DecryptResult, error)
}

// BatchDecrypter can decrypt many ciphertexts in one round trip. The result
// slice has the same length and order as the input; an empty input string
// marks a missing ciphertext and yields an Empty result at that position.
type BatchDecrypter interface {
	SecretDecrypter
	DecryptBatch(ctx context.Context, ciphertextsB64 []string) ([]model.DecryptResult, error)
}
