package identity

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func testRoot() RootSecret {
	root := make(RootSecret, RootSecretSize)
	for i := range root {
		root[i] = byte(i)
	}
	return root
}

func TestDeriveKeysDeterministic(t *testing.T) {
	root := testRoot()
	k1, err := DeriveKeys(root, "abc")
	if err != nil {
		t.Fatalf("derive keys 1 failed: %v", err)
	}
	k2, err := DeriveKeys(root, "abc")
	if err != nil {
		t.Fatalf("derive keys 2 failed: %v", err)
	}
	if !bytes.Equal(k1.SigningPublicKey, k2.SigningPublicKey) {
		t.Fatal("signing public keys should be deterministic")
	}
	if !bytes.Equal(k1.SigningPrivateKey, k2.SigningPrivateKey) {
		t.Fatal("signing private keys should be deterministic")
	}
	if !bytes.Equal(k1.EncryptionKey, k2.EncryptionKey) {
		t.Fatal("encryption keys should be deterministic")
	}
}

func TestDeriveKeysSizes(t *testing.T) {
	k, err := DeriveKeys(testRoot(), "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if len(k.SigningPublicKey) != ed25519.PublicKeySize {
		t.Fatalf("unexpected public key size: %d", len(k.SigningPublicKey))
	}
	if len(k.SigningPrivateKey) != ed25519.PrivateKeySize {
		t.Fatalf("unexpected private key size: %d", len(k.SigningPrivateKey))
	}
	if len(k.EncryptionKey) != 32 {
		t.Fatalf("unexpected encryption key size: %d", len(k.EncryptionKey))
	}
	if bytes.Equal(k.SigningPrivateKey.Seed(), k.EncryptionKey) {
		t.Fatal("sign and encrypt paths must produce different material")
	}
	if bytes.Equal(k.EncryptionKey, testRoot()) {
		t.Fatal("encryption key must not expose the root secret")
	}
}

func TestDerivedSigningKeyPairWorks(t *testing.T) {
	k, err := DeriveKeys(testRoot(), "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	msg := []byte("payload")
	sig := ed25519.Sign(k.SigningPrivateKey, msg)
	if !ed25519.Verify(k.SigningPublicKey, msg, sig) {
		t.Fatal("derived key pair must verify its own signatures")
	}
}

func TestDeriveKeysIndependentPerContentID(t *testing.T) {
	root := testRoot()
	seenPub := make(map[string]string)
	seenEnc := make(map[string]string)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("content-%d", i)
		k, err := DeriveKeys(root, id)
		if err != nil {
			t.Fatalf("derive %s failed: %v", id, err)
		}
		if prev, ok := seenPub[string(k.SigningPublicKey)]; ok {
			t.Fatalf("signing keys of %s and %s collide", prev, id)
		}
		if prev, ok := seenEnc[string(k.EncryptionKey)]; ok {
			t.Fatalf("encryption keys of %s and %s collide", prev, id)
		}
		seenPub[string(k.SigningPublicKey)] = id
		seenEnc[string(k.EncryptionKey)] = id
	}
}

func TestDeriveKeysDependsOnRoot(t *testing.T) {
	other := testRoot()
	other[0] ^= 0xFF
	a, err := DeriveKeys(testRoot(), "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := DeriveKeys(other, "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if bytes.Equal(a.EncryptionKey, b.EncryptionKey) || bytes.Equal(a.SigningPublicKey, b.SigningPublicKey) {
		t.Fatal("different roots must derive different keys")
	}
}

func TestDeriveKeysRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		root      RootSecret
		contentID string
	}{
		{name: "nil root", root: nil, contentID: "abc"},
		{name: "short root", root: make(RootSecret, 16), contentID: "abc"},
		{name: "long root", root: make(RootSecret, 64), contentID: "abc"},
		{name: "empty content id", root: testRoot(), contentID: ""},
		{name: "blank content id", root: testRoot(), contentID: "   "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, err := DeriveKeys(tc.root, tc.contentID)
			if !errors.Is(err, ErrDerivation) {
				t.Fatalf("expected ErrDerivation, got %v", err)
			}
			if k != nil {
				t.Fatal("no key material expected on error")
			}
		})
	}
}

type stubDeriver struct {
	out []byte
	err error
}

func (s stubDeriver) Derive([]byte, Path, int) ([]byte, error) {
	return append([]byte(nil), s.out...), s.err
}

func TestEngineWrapsDeriverFailures(t *testing.T) {
	failing := NewEngine(WithDeriver(stubDeriver{err: errors.New("hsm offline")}))
	if _, err := failing.Derive(testRoot(), "abc"); !errors.Is(err, ErrDerivation) {
		t.Fatalf("expected ErrDerivation, got %v", err)
	}

	short := NewEngine(WithDeriver(stubDeriver{out: []byte{1, 2, 3}}))
	_, err := short.Derive(testRoot(), "abc")
	if !errors.Is(err, ErrDerivation) {
		t.Fatalf("expected ErrDerivation for short output, got %v", err)
	}
	if strings.Contains(err.Error(), "abc") {
		t.Fatalf("error must not carry the content id: %v", err)
	}
}

func TestHKDFDeriverSeparatesSegments(t *testing.T) {
	root := testRoot()
	d := HKDFDeriver{}
	a, err := d.Derive(root, ContentPath("a", PurposeSign), 32)
	if err != nil {
		t.Fatalf("derive a failed: %v", err)
	}
	b, err := d.Derive(root, ContentPath("a\x00\x04sign", PurposeSign), 32)
	if err != nil {
		t.Fatalf("derive b failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("length-prefixed segments must not collide")
	}
}

func TestPathSegmentsAndEquality(t *testing.T) {
	p := ContentPath("abc", PurposeSign)
	want := []string{"content", "abc", "sign"}
	got := p.Segments()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected segments: %v", got)
	}
	if p.String() != "content/abc/sign" {
		t.Fatalf("unexpected path string: %s", p)
	}
	if !p.Equal(ContentPath("abc", PurposeSign)) {
		t.Fatal("paths with equal segments must be equal")
	}
	if p.Equal(ContentPath("abc", PurposeEncrypt)) {
		t.Fatal("different purpose must not be equal")
	}
	if p.Equal(ContentPath("abd", PurposeSign)) {
		t.Fatal("different content id must not be equal")
	}
	if Purpose(9).String() != "purpose(9)" {
		t.Fatalf("unexpected unknown purpose string: %s", Purpose(9))
	}
}

func TestFingerprint(t *testing.T) {
	k, err := DeriveKeys(testRoot(), "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	fp := Fingerprint(k.SigningPublicKey)
	if !strings.HasPrefix(fp, "ck1") || len(fp) < 20 {
		t.Fatalf("unexpected fingerprint: %q", fp)
	}
	if fp != Fingerprint(k.SigningPublicKey) {
		t.Fatal("fingerprint must be stable")
	}
	if Fingerprint([]byte{1, 2}) != "" {
		t.Fatal("invalid key size must give empty fingerprint")
	}
}

func TestDerivedKeyMaterialErase(t *testing.T) {
	root := testRoot()
	k, err := DeriveKeys(root, "abc")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	before := append([]byte(nil), k.EncryptionKey...)
	k.Erase()
	if bytes.Equal(before, k.EncryptionKey) {
		t.Fatal("encryption key must be overwritten")
	}
	var nilKeys *DerivedKeyMaterial
	nilKeys.Erase()
}

func TestDeriveEraseScenario(t *testing.T) {
	root := make(RootSecret, RootSecretSize)
	for i := range root {
		root[i] = byte(255 - i)
	}
	abc1, err := DeriveKeys(root, "abc")
	if err != nil {
		t.Fatalf("derive abc failed: %v", err)
	}
	abc2, err := DeriveKeys(root, "abc")
	if err != nil {
		t.Fatalf("derive abc again failed: %v", err)
	}
	xyz, err := DeriveKeys(root, "xyz")
	if err != nil {
		t.Fatalf("derive xyz failed: %v", err)
	}
	if !bytes.Equal(abc1.EncryptionKey, abc2.EncryptionKey) || !bytes.Equal(abc1.SigningPublicKey, abc2.SigningPublicKey) {
		t.Fatal("same content id must give identical material")
	}
	if bytes.Equal(abc1.EncryptionKey, xyz.EncryptionKey) || bytes.Equal(abc1.SigningPublicKey, xyz.SigningPublicKey) {
		t.Fatal("different content ids must give different material")
	}

	for name, k := range map[string]*DerivedKeyMaterial{"abc": abc1, "xyz": xyz} {
		orig := append([]byte(nil), k.EncryptionKey...)
		k.Erase()
		unchanged := 0
		for i := range orig {
			if orig[i] == k.EncryptionKey[i] {
				unchanged++
			}
		}
		// A byte may match its old value by chance (~1/256).
		if unchanged > 4 {
			t.Fatalf("%s: %d of %d bytes kept their value", name, unchanged, len(orig))
		}
	}
}
