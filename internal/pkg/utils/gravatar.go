package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

const defaultAvatarSize = 200

// GetGravatarURL generates a Gravatar URL for the given email address.
// Default size is 200px if not specified.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = defaultAvatarSize
	}
	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}

// AvatarURL prefers a stored avatar, typically the one GitHub reported on
// login, and falls back to Gravatar. Placeholder emails of OAuth-only users
// get the generic image.
func AvatarURL(stored, email string) string {
	if s := strings.TrimSpace(stored); s != "" {
		return s
	}
	if strings.HasSuffix(strings.ToLower(email), ".oauth.local") {
		return GetGravatarURL("", defaultAvatarSize)
	}
	return GetGravatarURL(email, defaultAvatarSize)
}
