package webhook

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encrypt mirrors the platform's encryption for tests
func encrypt(t *testing.T, key string, iv []byte, plaintext []byte) string {
	t.Helper()
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	return encryptRaw(t, key, iv, padded)
}

// encryptRaw encrypts already block-aligned data without padding
func encryptRaw(t *testing.T, key string, iv []byte, data []byte) string {
	t.Helper()
	require.Len(t, iv, aes.BlockSize)
	require.Zero(t, len(data)%aes.BlockSize)

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	require.NoError(t, err)

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(append(append([]byte{}, iv...), out...))
}

var testIV = []byte("0123456789abcdef")

func TestSignature(t *testing.T) {
	body := []byte(`{"encrypt":"abc"}`)
	sum := sha256.Sum256([]byte("1700000000" + "nonce" + "key" + string(body)))

	sig := Signature("1700000000", "nonce", "key", body)
	assert.Equal(t, sum[:], mustHex(t, sig))
	assert.Regexp(t, "^[0-9a-f]{64}$", sig)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"encrypt":"abc"}`)
	sig := Signature("1700000000", "nonce", "key", body)

	assert.True(t, VerifySignature("1700000000", "nonce", "key", body, sig))
	assert.False(t, VerifySignature("1700000000", "nonce", "key", []byte(`{"encrypt":"abd"}`), sig))
	assert.False(t, VerifySignature("1700000001", "nonce", "key", body, sig))
	assert.False(t, VerifySignature("1700000000", "nonce", "other", body, sig))
	assert.False(t, VerifySignature("1700000000", "nonce", "key", body, ""))
}

func TestVerifyRequest(t *testing.T) {
	body := []byte(`{"encrypt":"abc"}`)
	header := http.Header{}
	header.Set(HeaderTimestamp, "1700000000")
	header.Set(HeaderNonce, "nonce")

	t.Run("unsigned", func(t *testing.T) {
		assert.NoError(t, VerifyRequest(header, body, "key"))
	})

	t.Run("valid", func(t *testing.T) {
		signed := header.Clone()
		signed.Set(HeaderSignature, Signature("1700000000", "nonce", "key", body))
		assert.NoError(t, VerifyRequest(signed, body, "key"))
	})

	t.Run("mismatch", func(t *testing.T) {
		signed := header.Clone()
		signed.Set(HeaderSignature, Signature("1700000000", "nonce", "key", body))

		err := VerifyRequest(signed, []byte(`{"encrypt":"abd"}`), "key")
		var sigErr *SignatureError
		require.True(t, errors.As(err, &sigErr))
		assert.Equal(t, "1700000000", sigErr.Timestamp)
		assert.Equal(t, "nonce", sigErr.Nonce)
	})
}

func TestDecrypt_RoundTrip(t *testing.T) {
	plaintexts := []string{
		`{"challenge":"xyz","token":"t","type":"url_verification"}`,
		"exactly16bytes!!",
		"",
		"こんにちは",
	}
	for _, plaintext := range plaintexts {
		encrypted := encrypt(t, "test key", testIV, []byte(plaintext))

		got, err := Decrypt("test key", encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestDecrypt_Errors(t *testing.T) {
	tests := []struct {
		name      string
		encrypted string
	}{
		{"malformed base64", "***"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"not block aligned", base64.StdEncoding.EncodeToString(append(append([]byte{}, testIV...), make([]byte, 20)...))},
		{"pad length zero", encryptRaw(t, "k", testIV, append(bytes.Repeat([]byte("a"), 15), 0))},
		{"pad length too large", encryptRaw(t, "k", testIV, append(bytes.Repeat([]byte("a"), 15), 17))},
		{"inconsistent pad bytes", encryptRaw(t, "k", testIV, append(bytes.Repeat([]byte("a"), 13), 1, 2, 3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt("k", tt.encrypted)
			require.Error(t, err)

			var decryptErr *DecryptError
			assert.ErrorAs(t, err, &decryptErr)
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	encrypted := encrypt(t, "right", testIV, []byte(`{"a":1}`))

	got, err := Decrypt("wrong", encrypted)
	if err == nil {
		// A wrong key almost always breaks the padding; if it does not, the
		// output must still differ from the plaintext.
		assert.NotEqual(t, `{"a":1}`, got)
		return
	}
	var decryptErr *DecryptError
	assert.ErrorAs(t, err, &decryptErr)
}
