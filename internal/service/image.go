package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"jmailbox/internal/models"
)

// decodeImage turns a base64 payload into a picture. Line breaks inserted by
// firmware encoders are tolerated; padding is optional.
func decodeImage(b64 string) (models.CapturedImage, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, b64)

	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
		if err != nil {
			return models.CapturedImage{}, fmt.Errorf("base64: %w", err)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return models.CapturedImage{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	return models.CapturedImage{
		Image:  img,
		Format: format,
		Raw:    raw,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// ContentType maps a decoded image format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	}
	return "application/octet-stream"
}
