package whatsapp

import (
	"strings"

	"go.mau.fi/whatsmeow/types"

	apperrors "github.com/zapdeck/session-server/internal/errors"
)

// Normalizer turns user supplied phone numbers into contact addresses.
type Normalizer struct {
	CountryCode string
	Suffix      string
}

// Normalize keeps contact and group addresses, rewrites legacy c.us addresses
// and rejects other servers. Bare numbers are stripped to digits, domestic
// length numbers get the country code and the contact suffix is appended.
func (n Normalizer) Normalize(destination string) (string, error) {
	dest := strings.TrimSpace(destination)
	if user, server, ok := strings.Cut(dest, "@"); ok && user != "" && server != "" {
		switch server {
		case types.DefaultUserServer, types.GroupServer:
			return dest, nil
		case types.LegacyUserServer:
			dest = user
		default:
			return "", apperrors.InvalidDestination(destination)
		}
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, dest)
	if digits == "" {
		return "", apperrors.InvalidDestination(destination)
	}

	if (len(digits) == 10 || len(digits) == 11) && !strings.HasPrefix(digits, n.CountryCode) {
		digits = n.CountryCode + digits
	}
	return digits + n.Suffix, nil
}
