package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

// keySalt is fixed: the key must be reproducible on the same machine without
// storing anything besides the token file.
var keySalt = []byte("adupload/access-token/v1")

const nonceSize = 12

// DeriveKey stretches a machine identifier into a 256-bit AES key.
func DeriveKey(machineID string) []byte {
	return argon2.IDKey([]byte(machineID), keySalt, 1, 64*1024, 4, 32)
}

// Seal encrypts plaintext with AES-GCM and returns base64(nonce || ciphertext).
func Seal(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func Open(sealed string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) < nonceSize {
		return nil, errors.New("sealed value too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
}
