// Package webhook receives event callbacks: it verifies signatures,
// decrypts encrypted payloads and dispatches typed events to handlers.
package webhook

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Headers carrying the request signature
const (
	HeaderTimestamp = "X-Lark-Request-Timestamp"
	HeaderNonce     = "X-Lark-Request-Nonce"
	HeaderSignature = "X-Lark-Signature"
)

// DecryptError is returned when an encrypted payload cannot be opened
type DecryptError struct {
	Reason string
	Err    error
}

func (e *DecryptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decrypt event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to decrypt event: %s", e.Reason)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}

// SignatureError is returned when a request signature does not match
type SignatureError struct {
	Timestamp string
	Nonce     string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid signature for request at %s", e.Timestamp)
}

// Signature computes the lowercase hex SHA-256 of timestamp+nonce+encryptKey+body
func Signature(timestamp, nonce, encryptKey string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(encryptKey))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches the request
func VerifySignature(timestamp, nonce, encryptKey string, body []byte, signature string) bool {
	expected := Signature(timestamp, nonce, encryptKey, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// VerifyRequest checks the signature headers of a request against body. A
// request without a signature header passes; a mismatch is a
// *SignatureError.
func VerifyRequest(header http.Header, body []byte, encryptKey string) error {
	signature := header.Get(HeaderSignature)
	if signature == "" {
		return nil
	}
	timestamp := header.Get(HeaderTimestamp)
	nonce := header.Get(HeaderNonce)
	if !VerifySignature(timestamp, nonce, encryptKey, body, signature) {
		return &SignatureError{Timestamp: timestamp, Nonce: nonce}
	}
	return nil
}

// Decrypt opens an "encrypt" payload. The AES-256 key is SHA-256(encryptKey),
// the first block of the decoded payload is the IV and the plaintext is
// PKCS#7 padded.
func Decrypt(encryptKey, encrypted string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", &DecryptError{Reason: "malformed base64", Err: err}
	}
	if len(data) < 2*aes.BlockSize {
		return "", &DecryptError{Reason: "ciphertext too short"}
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptError{Reason: "ciphertext is not a multiple of the block size"}
	}

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", &DecryptError{Reason: "invalid key", Err: err}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &DecryptError{Reason: "empty plaintext"}
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(data) {
		return nil, &DecryptError{Reason: fmt.Sprintf("invalid padding length %d", pad)}
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, &DecryptError{Reason: "inconsistent padding bytes"}
		}
	}
	return data[:len(data)-pad], nil
}
