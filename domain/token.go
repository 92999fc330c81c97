package domain

import (
	"crypto/rand"
	"strings"
)

// SessionIDLength is the fixed length of generated session identifiers.
const SessionIDLength = 6

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID returns a random lowercase alphanumeric session identifier.
// Collisions against active sessions are the registry's concern, not ours.
func NewSessionID() string {
	buf := make([]byte, SessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// NormalizeSessionID maps user-supplied identifiers to their canonical form.
// Session ids are case-insensitive on the wire.
func NormalizeSessionID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
