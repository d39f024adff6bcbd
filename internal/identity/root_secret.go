package identity

import (
	"crypto/rand"
	"errors"
	"strings"

	"wallet-core/go-backend/internal/platform/wipe"

	"github.com/tyler-smith/go-bip39"
)

const hkdfInfoRoot = "wallet-core/root/v1"

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
)

// NewRootSecret returns a fresh random root secret.
func NewRootSecret() (RootSecret, error) {
	root := make(RootSecret, RootSecretSize)
	if _, err := rand.Read(root); err != nil {
		return nil, err
	}
	return root, nil
}

// NewMnemonic returns a fresh 24-word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	defer wipe.Zero(entropy)
	return bip39.NewMnemonic(entropy)
}

func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

// RootSecretFromMnemonic condenses the BIP-39 seed of mnemonic and passphrase
// into a RootSecret. The same words and passphrase always give the same root.
func RootSecretFromMnemonic(mnemonic, passphrase string) (RootSecret, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	defer wipe.Erase(seed)
	root, err := hkdfExpand(seed, []byte(hkdfInfoRoot), RootSecretSize)
	if err != nil {
		return nil, err
	}
	return RootSecret(root), nil
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
