package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRe     = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ\s]+$`)
	hasLetter  = regexp.MustCompile(`[A-Za-z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
)

// ValidUsername reports whether a username is 1-30 characters of
// letters, digits and underscores.
func ValidUsername(username string) bool {
	n := utf8.RuneCountInString(username)
	if n < 1 || n > 30 {
		return false
	}
	return usernameRe.MatchString(username)
}

// ValidEmail reports whether an email has the usual local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ValidPersonName reports whether a display name has at least 3
// non-space characters and contains only letters and spaces.
// Accented letters are allowed.
func ValidPersonName(name string) bool {
	// Length bounds count characters, not bytes: accented letters are
	// multi-byte in UTF-8.
	if utf8.RuneCountInString(strings.ReplaceAll(name, " ", "")) < 3 {
		return false
	}
	return nameRe.MatchString(name)
}

// ValidPassword reports whether a password is at least 8 characters
// and contains both a letter and a digit.
func ValidPassword(password string) bool {
	if utf8.RuneCountInString(password) < 8 {
		return false
	}
	return hasLetter.MatchString(password) && hasDigit.MatchString(password)
}

// ValidTeamName reports whether a team name is 3-30 characters of
// letters and spaces.
func ValidTeamName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < 3 || n > 30 {
		return false
	}
	return nameRe.MatchString(name)
}

// ValidUUID reports whether s is a UUID in the canonical hyphenated form.
// uuid.Parse alone also accepts braces, urn prefixes and bare hex, which
// must stay invalid here.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
