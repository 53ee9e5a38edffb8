// Package cardcrypto encrypts individual card fields with AES-256-CBC.
//
// Every card gets its own key and IV. All fields of one card share them, so
// equal field values on the same card encrypt to equal ciphertext. Ciphertext
// is hex encoded.
package cardcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialisation vector length in bytes.
	IVSize = aes.BlockSize
)

var (
	ErrInvalidKey        = errors.New("cardcrypto: key must be 32 bytes")
	ErrInvalidIV         = errors.New("cardcrypto: iv must be 16 bytes")
	ErrInvalidCiphertext = errors.New("cardcrypto: malformed ciphertext")
)

// KeyMaterial is a per-card key and IV pair.
type KeyMaterial struct {
	Key []byte
	IV  []byte
}

// NewKeyMaterial returns a fresh random 256-bit key and 128-bit IV.
func NewKeyMaterial() (KeyMaterial, error) {
	km := KeyMaterial{
		Key: make([]byte, KeySize),
		IV:  make([]byte, IVSize),
	}
	if _, err := rand.Read(km.Key); err != nil {
		return KeyMaterial{}, fmt.Errorf("cardcrypto: generate key: %w", err)
	}
	if _, err := rand.Read(km.IV); err != nil {
		return KeyMaterial{}, fmt.Errorf("cardcrypto: generate iv: %w", err)
	}
	return km, nil
}

// Cipher encrypts and decrypts strings under one key and IV.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// New creates a Cipher for the given key material.
func New(km KeyMaterial) (*Cipher, error) {
	if len(km.Key) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(km.IV) != IVSize {
		return nil, ErrInvalidIV
	}
	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, IVSize)
	copy(iv, km.IV)
	return &Cipher{block: block, iv: iv}, nil
}

// Encrypt returns the hex encoded ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out)
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrInvalidCiphertext
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrInvalidCiphertext
		}
	}
	return b[:len(b)-n], nil
}
