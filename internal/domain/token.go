package domain

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenEntropy is the number of bytes of entropy in ids returned by NewToken.
const tokenEntropy = 8

// TokenLength is the number of characters in ids returned by NewToken. It
// matches the length of YouTube video ids, which suggests there is enough
// entropy for the time being.
const TokenLength = 11

// NewToken returns a cryptographically random URL-safe token used as the
// primary key for media items, channels, playlists and permissions.
func NewToken() string {
	buf := make([]byte, tokenEntropy)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
