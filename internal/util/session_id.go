package util

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	sessionIDAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	sessionIDRandomLen = 6
	sessionIDPrefixLen = 8
	maxSessionIDLength = 64
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewSessionID returns <ownerPrefix>_<unixMillis>_<random6>.
func NewSessionID(ownerID string, now time.Time) string {
	prefix := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ownerID)
	if len(prefix) > sessionIDPrefixLen {
		prefix = prefix[:sessionIDPrefixLen]
	}
	if prefix == "" {
		prefix = "s"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), randomString(sessionIDRandomLen))
}

// IsValidSessionID accepts ids made of letters, digits, '_' and '-'.
func IsValidSessionID(id string) bool {
	return len(id) <= maxSessionIDLength && sessionIDRegex.MatchString(id)
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	for i, b := range buf {
		buf[i] = sessionIDAlphabet[int(b)%len(sessionIDAlphabet)]
	}
	return string(buf)
}
