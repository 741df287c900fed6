// Frame loading and saving functionality
package io

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	"edge-detection-viewer/internal/frame"
)

// FrameLoader handles frame file operations
type FrameLoader struct {
	logger  *slog.Logger
	encoder Encoder
}

func NewFrameLoader(logger *slog.Logger, jpegQuality int) *FrameLoader {
	return &FrameLoader{
		logger:  logger,
		encoder: Encoder{JPEGQuality: jpegQuality},
	}
}

// LoadI420 reads a headerless planar I420 file of the given size.
func (fl *FrameLoader) LoadI420(path string, width, height int) (frame.RawFrame, error) {
	fl.logger.Debug("Loading raw frame", "filepath", path, "width", width, "height", height)

	data, err := os.ReadFile(path)
	if err != nil {
		return frame.RawFrame{}, fmt.Errorf("failed to read frame: %w", err)
	}

	raw := frame.RawFrame{Width: width, Height: height, Format: frame.FormatI420, Data: data}
	if err := raw.Validate(); err != nil {
		return frame.RawFrame{}, fmt.Errorf("%s: %w", path, err)
	}

	fl.logger.Info("Raw frame loaded successfully",
		"filepath", path,
		"width", width,
		"height", height,
		"bytes", len(data))
	return raw, nil
}

// LoadImage decodes a PNG, JPEG, BMP or TIFF file into an RGBA raw frame.
func (fl *FrameLoader) LoadImage(path string) (frame.RawFrame, error) {
	fl.logger.Debug("Loading image", "filepath", path)

	if !fl.isSupportedImageFormat(path) {
		return frame.RawFrame{}, fmt.Errorf("unsupported image format: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return frame.RawFrame{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return frame.RawFrame{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	d := FromImage(img)
	fl.logger.Info("Image loaded successfully",
		"filepath", path,
		"width", d.Width,
		"height", d.Height)
	return d.AsRaw(), nil
}

// SaveFrame encodes f in the format implied by the path extension.
func (fl *FrameLoader) SaveFrame(f frame.DisplayFrame, path string) error {
	fl.logger.Debug("Saving frame", "filepath", path)

	if f.Empty() {
		return fmt.Errorf("cannot save empty frame")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fl.encoder.Encode(out, f, format); err != nil {
		out.Close()
		return fmt.Errorf("failed to save frame: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}

	fl.logger.Info("Frame saved successfully",
		"filepath", path,
		"format", string(format),
		"width", f.Width,
		"height", f.Height)
	return nil
}

func (fl *FrameLoader) isSupportedImageFormat(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

func getFileExtension(filepath string) string {
	for i := len(filepath) - 1; i >= 0; i-- {
		if filepath[i] == '.' {
			return filepath[i:]
		}
		if filepath[i] == '/' || filepath[i] == '\\' {
			break
		}
	}
	return ""
}

func (fl *FrameLoader) GetSupportedFormats() []string {
	return []string{"PNG", "JPEG", "BMP", "TIFF"}
}
