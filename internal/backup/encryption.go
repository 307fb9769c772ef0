package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// Encrypted bundle layout: magic, salt, nonce, ciphertext.
const (
	encMagic = "KAMIENC1"
	saltSize = 16
	keySize  = 32 // AES-256

	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
)

// IsEncrypted reports whether data starts with the encrypted bundle header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(encMagic))
}

// deriveKey stretches passphrase into an AES-256 key with Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

// encryptBundle seals data with a key derived from passphrase.
func encryptBundle(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, NewError(ErrConfig, "encryption passphrase is not set", nil)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, NewError(ErrEncryption, "failed to generate salt", err)
	}
	sealed, err := encryptData(data, deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltSize+len(sealed))
	out = append(out, encMagic...)
	out = append(out, salt...)
	return append(out, sealed...), nil
}

// decryptBundle opens data produced by encryptBundle.
func decryptBundle(data []byte, passphrase string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, NewError(ErrEncryption, "data is not an encrypted bundle", nil)
	}
	if passphrase == "" {
		return nil, NewError(ErrConfig, "bundle is encrypted but no passphrase is set", nil)
	}
	rest := data[len(encMagic):]
	if len(rest) < saltSize {
		return nil, NewError(ErrEncryption, "encrypted data too short", nil)
	}
	return decryptData(rest[saltSize:], deriveKey(passphrase, rest[:saltSize]))
}

// encryptData encrypts data using AES-256-GCM
func encryptData(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewError(ErrEncryption, "failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewError(ErrEncryption, "failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, NewError(ErrEncryption, "failed to generate nonce", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decryptData decrypts data using AES-256-GCM
func decryptData(encryptedData, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewError(ErrEncryption, "failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewError(ErrEncryption, "failed to create GCM", err)
	}

	if len(encryptedData) < gcm.NonceSize() {
		return nil, NewError(ErrEncryption, "encrypted data too short", nil)
	}

	nonce := encryptedData[:gcm.NonceSize()]
	ciphertext := encryptedData[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewError(ErrEncryption, "failed to decrypt data", err)
	}

	return plaintext, nil
}
