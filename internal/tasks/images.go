package tasks

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"github.com/desertthunder/coverx/internal/shared"
)

// MaxCoverBase64 is the largest base64 payload the provider accepts for a playlist cover.
const MaxCoverBase64 = 256 * 1024

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// jpegQualities are tried in order until the encoded cover fits [MaxCoverBase64].
var jpegQualities = []int{80, 65, 50, 35}

// NormalizeBase64 strips a data URL prefix and whitespace from an encoded image
// and checks that the result is valid base64 within [MaxCoverBase64].
func NormalizeBase64(encoded string) (string, error) {
	encoded = dataURLPrefix.ReplaceAllString(strings.TrimSpace(encoded), "")
	encoded = strings.Join(strings.Fields(encoded), "")

	if encoded == "" {
		return "", fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}
	if len(encoded) > MaxCoverBase64 {
		return "", fmt.Errorf("%w: image is %d bytes of base64, limit is %d", shared.ErrInvalidInput, len(encoded), MaxCoverBase64)
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		return "", fmt.Errorf("%w: image is not valid base64: %v", shared.ErrInvalidInput, err)
	}
	return encoded, nil
}

// PrepareCover turns raw image bytes into a base64 JPEG payload that fits the provider's limit.
//
// JPEG input that already fits is passed through untouched. Anything else (PNG from the
// image generator, oversized downloads) is decoded and re-encoded at decreasing quality.
func PrepareCover(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}

	if isJPEG(data) && base64.StdEncoding.EncodedLen(len(data)) <= MaxCoverBase64 {
		return base64.StdEncoding.EncodeToString(data), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unsupported image: %v", shared.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	for _, quality := range jpegQualities {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("failed to encode cover: %w", err)
		}
		if base64.StdEncoding.EncodedLen(buf.Len()) <= MaxCoverBase64 {
			return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
		}
	}
	return "", fmt.Errorf("%w: image too large even at quality %d", shared.ErrInvalidInput, jpegQualities[len(jpegQualities)-1])
}

func isJPEG(data []byte) bool {
	return len(data) > 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff
}
