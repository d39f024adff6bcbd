package identity

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const fingerprintPrefix = "ck1"

// Fingerprint returns a printable, log-safe identifier for a signing public
// key, or "" if pub has the wrong size.
func Fingerprint(pub ed25519.PublicKey) string {
	if len(pub) != ed25519.PublicKeySize {
		return ""
	}
	h := blake2b.Sum256(pub)
	return fingerprintPrefix + base58.Encode(h[:])
}
