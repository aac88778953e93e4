package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Limits applied to user supplied fields.
const (
	MaxEmailLength    = 254
	MinPasswordLength = 8
	// MaxPasswordLength is the number of bytes bcrypt considers.
	MaxPasswordLength = 72
	MaxNameLength     = 100
	MaxContentLength  = 2000
)

// ErrEmptyPost rejects posts carrying neither content nor an image.
var ErrEmptyPost = errors.New("Please add some content or an image.")

// Email validates format and length.
func Email(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email address is too long (max %d characters)", MaxEmailLength)
	}
	// Only a bare addr-spec is an account email; display names and comments are rejected.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address")
	}
	return nil
}

// Password validates length. The upper bound is in bytes.
func Password(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLength)
	}
	return nil
}

// FullName validates an optional display name.
func FullName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) > MaxNameLength {
		return fmt.Errorf("name is too long (max %d characters)", MaxNameLength)
	}
	return nil
}

// Content trims post text and enforces its length. hasImage reports whether
// the post carries an image, in which case empty text is allowed.
func Content(content string, hasImage bool) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" && !hasImage {
		return "", ErrEmptyPost
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", fmt.Errorf("content is too long (max %d characters)", MaxContentLength)
	}
	return trimmed, nil
}
