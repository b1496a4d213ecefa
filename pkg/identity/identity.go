// Package identity normalizes git author identities so that statistics
// aggregate the same person across signature variations.
package identity

import "strings"

// UnknownName is the display name used when a signature carries neither a
// name nor an email.
const UnknownName = "<unknown>"

// Key returns the canonical aggregation key for an author signature.
// Emails are preferred because names drift more often; both are lowercased
// so that "Jane <JANE@x.com>" and "jane doe <jane@x.com>" collapse into one
// author.
func Key(name, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return email
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" {
		return name
	}

	return UnknownName
}

// DisplayName returns the human-facing form of a signature.
func DisplayName(name, email string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}

	email = strings.TrimSpace(email)
	if email != "" {
		return email
	}

	return UnknownName
}

// Matches reports whether an author signature matches a pattern match
// function against either the name or the email.
func Matches(name, email string, match func(string) bool) bool {
	return match(strings.ToLower(name)) || match(strings.ToLower(email))
}
