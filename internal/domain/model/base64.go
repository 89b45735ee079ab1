package model

import "regexp"

var base64Alphabet = regexp.MustCompile(`^[-A-Za-z0-9+/]*={0,3}$`)

// ValidBase64 reports whether s is non-empty base64-alphabet text. It checks
// the alphabet only; it does not prove s decodes.
func ValidBase64(s string) bool {
	return s != "" && base64Alphabet.MatchString(s)
}
