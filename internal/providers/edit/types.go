// Package edit holds the contract shared by image editing providers.
package edit

import (
	"context"
	"io"
)

// Request describes one image edit call. Image and Mask are PNG streams; Mask
// may be nil for providers that do not support masking.
type Request struct {
	Image     io.Reader
	ImageName string
	Mask      io.Reader
	MaskName  string
	Prompt    string
	Size      string
	RequestID string
}

// Editor is implemented by every provider able to rewrite an image from a prompt.
type Editor interface {
	EditImage(ctx context.Context, req Request) ([]byte, error)
	Model() string
}
