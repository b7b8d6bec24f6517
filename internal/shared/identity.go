package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// ImageIdentity derives a host-independent content identity for a hosted cover image URL.
//
// The identity is the path segment that follows an "image", "images" or "img" segment
// (e.g. https://i.scdn.co/image/ab67706c0000da84 → "img:ab67706c0000da84"). A segment with
// more path after it only counts when it looks like a content token, so directory names
// such as /images/covers/a.jpg fall through to the digest. Mosaic hosts
// encode the content in their last path segment, after a size segment that varies by rendition.
//
// URLs without a recognizable identifier degrade to a digest of the full URL, so
// they still dedupe against themselves but never across hosts.
func ImageIdentity(rawURL string) string {
	if id, err := StrictImageIdentity(rawURL); err == nil {
		return id
	}
	sum := sha256.Sum256([]byte(rawURL))
	return "url:" + hex.EncodeToString(sum[:])
}

// StrictImageIdentity is [ImageIdentity] without the degraded fallback.
//
// Returns [ErrMalformedURL] when the URL does not parse or carries no embedded identifier.
func StrictImageIdentity(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, rawURL)
	}

	segments := pathSegments(u.Path)

	if strings.HasPrefix(strings.ToLower(u.Hostname()), "mosaic.") && len(segments) > 0 {
		return "mosaic:" + segments[len(segments)-1], nil
	}

	for i := 0; i < len(segments)-1; i++ {
		switch strings.ToLower(segments[i]) {
		case "image", "images", "img":
			id := segments[i+1]
			if i+2 == len(segments) || contentToken(id) {
				return "img:" + id, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no embedded identifier in %q", ErrMalformedURL, rawURL)
}

// contentToken reports whether s is built from letters, digits, '-' and '_' and holds
// at least one digit.
func contentToken(s string) bool {
	digit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return digit
}

func pathSegments(p string) []string {
	var out []string
	for s := range strings.SplitSeq(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
