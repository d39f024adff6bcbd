package identity

import "fmt"

// Purpose tags what a derived key is used for.
type Purpose uint8

const (
	PurposeSign Purpose = iota + 1
	PurposeEncrypt
)

func (p Purpose) String() string {
	switch p {
	case PurposeSign:
		return "sign"
	case PurposeEncrypt:
		return "encrypt"
	default:
		return fmt.Sprintf("purpose(%d)", uint8(p))
	}
}

func (p Purpose) valid() bool {
	return p == PurposeSign || p == PurposeEncrypt
}

const contentNamespace = "content"

// Path scopes a derived key to a purpose under the content/{id} namespace.
type Path struct {
	Purpose   Purpose
	ContentID string
}

func ContentPath(contentID string, purpose Purpose) Path {
	return Path{Purpose: purpose, ContentID: contentID}
}

// Segments renders p as ["content", contentID, purpose].
func (p Path) Segments() []string {
	return []string{contentNamespace, p.ContentID, p.Purpose.String()}
}

// Equal reports whether both paths have the same segments in the same order.
func (p Path) Equal(other Path) bool {
	a, b := p.Segments(), other.Segments()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return contentNamespace + "/" + p.ContentID + "/" + p.Purpose.String()
}
