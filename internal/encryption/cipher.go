// Package encryption protects refresh tokens at rest.
//
// Envelopes have the form hex(iv):hex(ciphertext):hex(mac). The AES-256 key is
// the first half of a scrypt derivation from the passphrase, so envelopes in the
// older iv:ciphertext form written with a 32-byte scrypt key remain readable.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/dtroode/gcal-connect/internal/model"
)

const (
	keyLen    = 32
	separator = ":"

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var salt = []byte("salt")

var (
	ErrEmptyPassphrase   = errors.New("encryption passphrase is empty")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrDecrypt           = errors.New("failed to decrypt envelope")
)

var _ model.Cipher = (*AESCBC)(nil)

// AESCBC encrypts with AES-256-CBC and authenticates with HMAC-SHA256.
type AESCBC struct {
	encKey []byte
	macKey []byte
	rand   io.Reader
}

// New derives the keys from passphrase. Derivation takes tens of milliseconds;
// construct one AESCBC per process.
func New(passphrase string) (*AESCBC, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 2*keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return &AESCBC{
		encKey: key[:keyLen],
		macKey: key[keyLen:],
		rand:   rand.Reader,
	}, nil
}

// Encrypt returns an envelope with a fresh random IV.
func (c *AESCBC) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(c.mac(iv, ciphertext)),
	}, separator), nil
}

// Decrypt opens an envelope produced by Encrypt or by the legacy two-part format.
func (c *AESCBC) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, separator)
	if len(parts) != 2 && len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 2 or 3 parts, got %d", ErrMalformedEnvelope, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, aes.BlockSize)
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrMalformedEnvelope)
	}

	if len(parts) == 3 {
		tag, err := hex.DecodeString(parts[2])
		if err != nil {
			return "", fmt.Errorf("%w: mac: %v", ErrMalformedEnvelope, err)
		}
		if !hmac.Equal(tag, c.mac(iv, ciphertext)) {
			return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
		}
	}

	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func (c *AESCBC) mac(iv, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// Encrypt is a one-shot helper that derives the key on every call.
func Encrypt(plaintext, passphrase string) (string, error) {
	c, err := New(passphrase)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// Decrypt is a one-shot helper that derives the key on every call.
func Decrypt(envelope, passphrase string) (string, error) {
	c, err := New(passphrase)
	if err != nil {
		return "", err
	}
	return c.Decrypt(envelope)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecrypt)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
		}
	}
	return b[:len(b)-n], nil
}
