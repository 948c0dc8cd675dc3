// Package imageprep handles image payload encoding and the normalisation
// upstream image models require.
package imageprep

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyPayload is returned when no image bytes were supplied.
var ErrEmptyPayload = errors.New("imageprep: empty image payload")

// Payload is a decoded image with its MIME type.
type Payload struct {
	MIME string
	Data []byte
}

// ParseDataURI accepts either a bare base64 string or a
// "data:<mime>;base64,<data>" URI. Without a prefix the MIME type is sniffed.
func ParseDataURI(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Payload{}, ErrEmptyPayload
	}
	mime := ""
	encoded := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return Payload{}, errors.New("imageprep: malformed data uri")
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return Payload{}, errors.New("imageprep: data uri is not base64 encoded")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		encoded = rest
	}
	data, err := decodeBase64(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("imageprep: decode base64: %w", err)
	}
	if len(data) == 0 {
		return Payload{}, ErrEmptyPayload
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Payload{MIME: mime, Data: data}, nil
}

// DataURI renders the payload as "data:<mime>;base64,<data>".
func (p Payload) DataURI() string {
	mime := p.MIME
	if mime == "" {
		mime = http.DetectContentType(p.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Base64 returns the raw base64 body without a prefix.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// IsImage reports whether the MIME type names an image.
func (p Payload) IsImage() bool {
	return strings.HasPrefix(p.MIME, "image/")
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
