package enums

import "slices"

// TokenKind identifies a single-use account token.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

var validTokenKinds = []TokenKind{
	TokenKindPasswordReset,
	TokenKindEmailVerification,
}

func (t TokenKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TokenKind.
func (t TokenKind) IsValid() bool {
	return slices.Contains(validTokenKinds, t)
}

// ParseTokenKind converts raw input into a TokenKind.
func ParseTokenKind(value string) (TokenKind, error) {
	return parse("token kind", validTokenKinds, value)
}
