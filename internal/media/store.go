// Package media stores uploaded recipe images and avatars.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	RecipeImagesDir = "recipes/images"
	AvatarsDir      = "avatars"

	// MaxImageBytes bounds a decoded upload.
	MaxImageBytes = 10 << 20
)

var ErrInvalidImage = errors.New("invalid image data")

// Store persists media files under relative keys such as
// "recipes/images/<uuid>.png".
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public address of key; an empty key yields "".
	URL(key string) string
}

var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,`)

// Image is a decoded data URI.
type Image struct {
	Data        []byte
	Ext         string
	ContentType string
}

// DecodeDataURI parses "data:image/<ext>;base64,<payload>".
func DecodeDataURI(uri string) (Image, error) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return Image{}, fmt.Errorf("%w: expected a base64 data:image URI", ErrInvalidImage)
	}
	payload := strings.TrimSpace(uri[len(m[0]):])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if len(data) > MaxImageBytes {
		return Image{}, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}
	ext := strings.ToLower(m[1])
	if ext == "jpeg" {
		ext = "jpg"
	}
	return Image{Data: data, Ext: ext, ContentType: "image/" + strings.ToLower(m[1])}, nil
}

// NewKey returns a fresh key inside dir.
func NewKey(dir, ext string) string {
	return path.Join(dir, uuid.NewString()+"."+ext)
}

// SaveDataURI decodes uri and stores it under a new key in dir.
func SaveDataURI(ctx context.Context, s Store, dir, uri string) (string, error) {
	img, err := DecodeDataURI(uri)
	if err != nil {
		return "", err
	}
	key := NewKey(dir, img.Ext)
	if err := s.Save(ctx, key, img.Data, img.ContentType); err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	return key, nil
}

func joinURL(base, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
