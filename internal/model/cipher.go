package model

// Cipher encrypts secrets before they are stored.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}
