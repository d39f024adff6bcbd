package identity

import (
	"crypto/ed25519"

	"wallet-core/go-backend/internal/platform/wipe"
)

// RootSecretSize is the required length of a RootSecret.
const RootSecretSize = 32

// RootSecret is the wallet's utility key. It is owned by the caller, read-only
// here, and never persisted or logged by this package.
type RootSecret []byte

// DerivedKeyMaterial is produced fresh by every derivation. The caller owns it
// and should call Erase once it is no longer needed.
type DerivedKeyMaterial struct {
	SigningPublicKey  ed25519.PublicKey  // 32 bytes
	SigningPrivateKey ed25519.PrivateKey // 64 bytes
	EncryptionKey     []byte             // 32 bytes
}

// Erase overwrites all key buffers. The material is unusable afterwards.
func (k *DerivedKeyMaterial) Erase() {
	if k == nil {
		return
	}
	wipe.EraseAll(k.SigningPrivateKey, k.EncryptionKey, k.SigningPublicKey)
}
