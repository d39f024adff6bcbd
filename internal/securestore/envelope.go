// Package securestore seals content with key material derived for it.
//
// An Envelope is encrypted with XChaCha20-Poly1305 under the content's
// encryption key, bound to the content id as associated data, and signed with
// the content's ed25519 signing key.
package securestore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	"wallet-core/go-backend/internal/identity"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	envelopeCipher  = "xchacha20poly1305"
	filePrefix      = "WCENV1\n"
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrNoKeys     = errors.New("securestore key material is missing")
)

type Envelope struct {
	Version    uint32 `json:"version"`
	Cipher     string `json:"cipher"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Signature  []byte `json:"signature"`
}

// Seal encrypts plaintext for contentID with keys and signs the result.
func Seal(keys *identity.DerivedKeyMaterial, contentID string, plaintext []byte) (*Envelope, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, ErrInvalid
	}
	aead, err := chacha20poly1305.NewX(keys.EncryptionKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	env := &Envelope{
		Version:    envelopeVersion,
		Cipher:     envelopeCipher,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(contentID)),
	}
	env.Signature = ed25519.Sign(keys.SigningPrivateKey, signingBytes(contentID, env))
	return env, nil
}

// Open verifies env's signature and decrypts it for contentID.
func Open(keys *identity.DerivedKeyMaterial, contentID string, env *Envelope) ([]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	contentID = strings.TrimSpace(contentID)
	if env == nil || contentID == "" || env.Version != envelopeVersion || env.Cipher != envelopeCipher {
		return nil, ErrInvalid
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX || len(env.Signature) != ed25519.SignatureSize {
		return nil, ErrInvalid
	}
	if !ed25519.Verify(keys.SigningPublicKey, signingBytes(contentID, env), env.Signature) {
		return nil, ErrAuthFailed
	}
	aead, err := chacha20poly1305.NewX(keys.EncryptionKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(contentID))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Marshal encodes env with a format prefix.
func Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrInvalid
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func Unmarshal(data []byte) (*Envelope, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return nil, ErrInvalid
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	return &env, nil
}

func checkKeys(keys *identity.DerivedKeyMaterial) error {
	if keys == nil ||
		len(keys.EncryptionKey) != chacha20poly1305.KeySize ||
		len(keys.SigningPrivateKey) != ed25519.PrivateKeySize ||
		len(keys.SigningPublicKey) != ed25519.PublicKeySize {
		return ErrNoKeys
	}
	return nil
}

func signingBytes(contentID string, env *Envelope) []byte {
	b := make([]byte, 0, 4+len(contentID)+len(env.Nonce)+len(env.Ciphertext)+3)
	b = binary.BigEndian.AppendUint32(b, env.Version)
	b = append(b, env.Cipher...)
	b = append(b, 0)
	b = append(b, contentID...)
	b = append(b, 0)
	b = append(b, env.Nonce...)
	b = append(b, env.Ciphertext...)
	return b
}
