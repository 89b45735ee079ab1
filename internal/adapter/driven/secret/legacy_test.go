package secret

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// sealLegacy builds a Veeam ONE legacy blob with the given salt and IV.
func sealLegacy(t *testing.T, salt, iv, plaintext []byte, pad bool) string {
	t.Helper()
	if pad {
		n := aes.BlockSize - len(plaintext)%aes.BlockSize
		plaintext = append(append([]byte(nil), plaintext...), bytes.Repeat([]byte{byte(n)}, n)...)
	}
	block, err := aes.NewCipher(deriveLegacyKey(salt))
	require.NoError(t, err)
	ct := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, plaintext)

	blob := append(append(append([]byte(nil), salt...), iv...), ct...)
	return base64.StdEncoding.EncodeToString(blob)
}

// NIST SP 800-38A F.2.2 CBC-AES128.Decrypt, first two blocks.
func TestCBCDecrypt_NISTVector(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	ct := mustHex(t, "7649abac8119b246cee98e9b12e9197d5086cb9b507219ee95db113a917678b2")

	pt, err := cbcDecrypt(key, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e51", hex.EncodeToString(pt))
}

func TestDeriveLegacyKey(t *testing.T) {
	salt := seq(0, legacySaltLen)

	k1 := deriveLegacyKey(salt)
	k2 := deriveLegacyKey(salt)
	assert.Len(t, k1, 16)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, deriveLegacyKey(seq(1, legacySaltLen)))
}

// Key computed with Python hashlib.pbkdf2_hmac("sha1", b"123456789", salt, 1000, 16);
// ciphertext produced by openssl enc -aes-128-cbc with that key and IV 10..1f.
func TestLegacy_KnownVector(t *testing.T) {
	assert.Equal(t, "aba332e2c7eb9f348e65ce126583bf60", hex.EncodeToString(deriveLegacyKey(seq(0x00, legacySaltLen))))

	got, err := NewLegacy().Decrypt(context.Background(), "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh+F40qmQW/+GHWGrySB0Clm")
	require.NoError(t, err)
	assert.Equal(t, model.Decrypted("P@ssw0rd!"), got)
}

func TestLegacy_Decrypt(t *testing.T) {
	salt := seq(0x00, legacySaltLen)
	iv := seq(0x10, legacyIVLen)

	tests := []struct {
		name      string
		plaintext []byte
		want      model.DecryptResult
	}{
		{name: "ascii", plaintext: []byte("P@ssw0rd!"), want: model.Decrypted("P@ssw0rd!")},
		{name: "full block", plaintext: []byte("0123456789abcdef"), want: model.Decrypted("0123456789abcdef")},
		{name: "utf16le keeps bytes", plaintext: []byte{'p', 0, 'w', 0}, want: model.Decrypted("p\x00w\x00")},
		{name: "empty plaintext", plaintext: nil, want: model.EmptyResult()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLegacy().Decrypt(context.Background(), sealLegacy(t, salt, iv, tt.plaintext, true))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacy_DecryptFailures(t *testing.T) {
	salt := seq(0x00, legacySaltLen)
	iv := seq(0x10, legacyIVLen)
	b64 := base64.StdEncoding.EncodeToString

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "not base64", input: "***", wantErr: ErrInvalidBase64},
		{name: "empty", input: "", wantErr: ErrInvalidBase64},
		{name: "shorter than salt and iv", input: b64(seq(0, 31)), wantErr: errLegacyTooShort},
		{name: "no ciphertext", input: b64(seq(0, 32)), wantErr: errLegacyAlign},
		{name: "misaligned", input: b64(seq(0, 37)), wantErr: errLegacyAlign},
		{name: "bad padding", input: sealLegacy(t, salt, iv, append(seq(0x41, 15), 0x00), false), wantErr: errLegacyPadding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLegacy().Decrypt(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, model.DecryptFailed, got.Status)
			assert.ErrorIs(t, got.Err, tt.wantErr)
		})
	}
}

func TestPKCS7Unpad(t *testing.T) {
	got, err := pkcs7Unpad([]byte{'a', 'b', 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)

	_, err = pkcs7Unpad([]byte{'a', 1, 2})
	require.ErrorIs(t, err, errLegacyPadding)

	_, err = pkcs7Unpad([]byte{'a', 17})
	require.ErrorIs(t, err, errLegacyPadding)
}
