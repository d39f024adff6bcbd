package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"wallet-core/go-backend/internal/platform/wipe"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoContentKey = "wallet-core/content-key/v1"
	componentName      = "identity"
)

var ErrDerivation = errors.New("key derivation failed")

// Deriver is the keyed derivation primitive: the same secret and path always
// produce the same outLen pseudorandom bytes, and distinct paths produce
// independent output.
type Deriver interface {
	Derive(secret []byte, path Path, outLen int) ([]byte, error)
}

// HKDFDeriver derives with HKDF-SHA256. The path segments are length-prefixed
// into the info parameter so no two paths share an encoding.
type HKDFDeriver struct{}

func (HKDFDeriver) Derive(secret []byte, path Path, outLen int) ([]byte, error) {
	info, err := encodePathInfo(path)
	if err != nil {
		return nil, err
	}
	return hkdfExpand(secret, info, outLen)
}

func encodePathInfo(path Path) ([]byte, error) {
	segments := path.Segments()
	info := make([]byte, 0, len(hkdfInfoContentKey)+64)
	info = append(info, hkdfInfoContentKey...)
	for _, seg := range segments {
		if len(seg) > math.MaxUint16 {
			return nil, fmt.Errorf("path segment too long: %d bytes", len(seg))
		}
		info = binary.BigEndian.AppendUint16(info, uint16(len(seg)))
		info = append(info, seg...)
	}
	return info, nil
}

func hkdfExpand(secret, info []byte, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

type EngineOption func(*Engine)

func WithDeriver(d Deriver) EngineOption {
	return func(e *Engine) {
		if d != nil {
			e.deriver = d
		}
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine derives per-content key material from a root secret. It holds no
// secrets and is safe for concurrent use.
type Engine struct {
	deriver Deriver
	logger  *slog.Logger
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		deriver: HKDFDeriver{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derive returns the signing key pair and encryption key for contentID.
// The sign path output seeds an ed25519 key pair; the encrypt path output is
// the symmetric key itself.
func (e *Engine) Derive(root RootSecret, contentID string) (*DerivedKeyMaterial, error) {
	if len(root) != RootSecretSize {
		return nil, fmt.Errorf("%w: root secret must be %d bytes, got %d", ErrDerivation, RootSecretSize, len(root))
	}
	if strings.TrimSpace(contentID) == "" {
		return nil, fmt.Errorf("%w: content id is required", ErrDerivation)
	}

	signingSeed, err := e.derivePath(root, ContentPath(contentID, PurposeSign), ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	defer wipe.Zero(signingSeed)
	encryptionKey, err := e.derivePath(root, ContentPath(contentID, PurposeEncrypt), chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	signingPriv := ed25519.NewKeyFromSeed(signingSeed)
	signingPub := signingPriv.Public().(ed25519.PublicKey)

	e.logger.Debug("content keys derived",
		"component", componentName,
		"operation", "derive",
		"content_id", contentID,
		"signing_key_fp", Fingerprint(signingPub),
	)
	return &DerivedKeyMaterial{
		SigningPublicKey:  signingPub,
		SigningPrivateKey: signingPriv,
		EncryptionKey:     encryptionKey,
	}, nil
}

func (e *Engine) derivePath(root RootSecret, path Path, outLen int) ([]byte, error) {
	if !path.Purpose.valid() {
		return nil, fmt.Errorf("%w: unknown purpose %s", ErrDerivation, path.Purpose)
	}
	out, err := e.deriver.Derive(root, path, outLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %s path: %v", ErrDerivation, path.Purpose, err)
	}
	if len(out) != outLen {
		wipe.Zero(out)
		return nil, fmt.Errorf("%w: %s path: deriver returned %d bytes, want %d", ErrDerivation, path.Purpose, len(out), outLen)
	}
	return out, nil
}

// DeriveKeys derives content key material with the default engine.
func DeriveKeys(root RootSecret, contentID string) (*DerivedKeyMaterial, error) {
	return defaultEngine.Derive(root, contentID)
}

var defaultEngine = &Engine{deriver: HKDFDeriver{}, logger: slog.New(slog.DiscardHandler)}
