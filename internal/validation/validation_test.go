package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"simple", "john_doe", true},
		{"single character", "j", true},
		{"digits and underscores", "user_42", true},
		{"thirty characters", strings.Repeat("a", 30), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 31), false},
		{"spaces", "john doe", false},
		{"punctuation", "john.doe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidUsername(tt.username))
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"simple", "user@example.com", true},
		{"subdomain", "user@mail.example.com", true},
		{"missing at", "userexample.com", false},
		{"missing tld", "user@example", false},
		{"spaces", "user name@example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidEmail(tt.email))
		})
	}
}

func TestValidPersonName(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		want     bool
	}{
		{"simple", "John Doe", true},
		{"accented letters", "José Álvarez", true},
		{"three letters", "Ana", true},
		{"three accented letters", "Àéç", true},
		{"too short", "Jo", false},
		{"two accented letters", "Àé", false},
		{"spaces do not count", "J o", false},
		{"digits", "John2 Doe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPersonName(tt.fullName))
		})
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"letters and digits", "hunter2hunter2", true},
		{"exactly eight", "abcdefg1", true},
		{"too short", "abc1", false},
		{"seven characters with accents", "àéíóú1a", false},
		{"letters only", "abcdefghij", false},
		{"digits only", "1234567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPassword(tt.password))
		})
	}
}

func TestValidTeamName(t *testing.T) {
	tests := []struct {
		name     string
		teamName string
		want     bool
	}{
		{"simple", "Alpha Squad", true},
		{"three letters", "Ops", true},
		{"thirty characters", strings.Repeat("a", 30), true},
		{"thirty accented characters", strings.Repeat("é", 30), true},
		{"sixteen accented characters", strings.Repeat("Àé", 8), true},
		{"too short", "Go", false},
		{"two accented characters", "Àé", false},
		{"too long", strings.Repeat("a", 31), false},
		{"thirty one accented characters", strings.Repeat("é", 31), false},
		{"digits", "Team 9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTeamName(tt.teamName))
		})
	}
}

func TestValidUUID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"canonical", "11111111-1111-1111-1111-111111111111", true},
		{"uppercase", "11111111-1111-1111-1111-11111111111A", true},
		{"empty", "", false},
		{"truncated", "11111111-1111-1111-1111", false},
		{"not hex", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz", false},
		{"bare hex without hyphens", "11111111111111111111111111111111", false},
		{"urn prefix", "urn:uuid:11111111-1111-1111-1111-111111111111", false},
		{"braces", "{11111111-1111-1111-1111-111111111111}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidUUID(tt.id))
		})
	}
}
