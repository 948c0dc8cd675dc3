package stage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wardrobe/internal/domain"
	"wardrobe/internal/imageprep"
	"wardrobe/internal/providers/edit"
	"wardrobe/internal/storage"
)

// StudioPrompt is the instruction sent with every enhancement.
const StudioPrompt = `Transform this garment photo into a high-end e-commerce studio shot.
1. Background: replace the existing background with a clean, seamless, pure white (RGB 255, 255, 255) backdrop.
2. Lighting: apply soft, even high-key studio lighting so the image is bright with at most subtle shadows that define the shape.
3. Retouching: sharpen the fabric texture, remove wrinkles, creases and lint, and keep the fabric realistic.
4. Presentation: drape the garment symmetrically, flat-lay styled, ready for an online product catalog.
Return only the processed image.`

// Enhancer retouches garments through a generative image editor.
type Enhancer struct {
	editor  edit.Editor
	scratch *storage.FileStore
	timeout time.Duration
	logger  zerolog.Logger
}

// NewEnhancer wires an editor to a scratch store. timeout bounds each call.
func NewEnhancer(editor edit.Editor, scratch *storage.FileStore, timeout time.Duration, logger zerolog.Logger) *Enhancer {
	return &Enhancer{
		editor:  editor,
		scratch: scratch,
		timeout: timeout,
		logger:  logger.With().Str("component", "enhancer").Str("model", editor.Model()).Logger(),
	}
}

// Name implements Stage.
func (e *Enhancer) Name() string { return NameEnhancer }

// Transform prepares the image for the editor, calls it and returns a PNG.
func (e *Enhancer) Transform(ctx context.Context, img imageprep.Payload) (imageprep.Payload, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if len(img.Data) == 0 {
		return img, imageprep.ErrEmptyPayload
	}

	prepared, err := imageprep.PrepareForEdit(img.Data)
	if err != nil {
		return img, fmt.Errorf("enhancer: prepare: %w", err)
	}

	callID := uuid.NewString()
	defer func() {
		if err := e.scratch.RemoveAll(callID); err != nil {
			e.logger.Warn().Err(err).Str("call_id", callID).Msg("enhancer: scratch cleanup failed")
		}
	}()

	imageKey, err := e.scratch.Write(ctx, path.Join(callID, "image.png"), prepared.Image)
	if err != nil {
		return img, fmt.Errorf("enhancer: stage image: %w", err)
	}
	maskKey, err := e.scratch.Write(ctx, path.Join(callID, "mask.png"), prepared.Mask)
	if err != nil {
		return img, fmt.Errorf("enhancer: stage mask: %w", err)
	}

	imageFile, err := e.scratch.Open(imageKey)
	if err != nil {
		return img, fmt.Errorf("enhancer: %w", err)
	}
	defer imageFile.Close()
	maskFile, err := e.scratch.Open(maskKey)
	if err != nil {
		return img, fmt.Errorf("enhancer: %w", err)
	}
	defer maskFile.Close()

	start := time.Now()
	out, err := e.editor.EditImage(ctx, edit.Request{
		Image:     imageFile,
		ImageName: "image.png",
		Mask:      maskFile,
		MaskName:  "mask.png",
		Prompt:    StudioPrompt,
		Size:      "1024x1024",
		RequestID: callID,
	})
	if err != nil {
		return img, fmt.Errorf("enhancer: %w: %w", domain.ErrProviderFailure, err)
	}
	if len(out) == 0 {
		return img, fmt.Errorf("enhancer: %w: editor returned no image", domain.ErrProviderFailure)
	}

	pngData, err := imageprep.ToPNG(out)
	if err != nil {
		return img, fmt.Errorf("enhancer: normalise output: %w", err)
	}

	e.logger.Debug().
		Int("width", prepared.Width).
		Int("height", prepared.Height).
		Dur("duration", time.Since(start)).
		Msg("enhancer: image edited")

	return imageprep.Payload{MIME: "image/png", Data: pngData}, nil
}
