package display

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGDevice writes frames to a file instead of a panel. Used for
// development and as the preview source for uploads; writes are atomic
// so readers never see a partial image.
type PNGDevice struct {
	Path string
}

func NewPNGDevice(path string) *PNGDevice {
	return &PNGDevice{Path: path}
}

func (d *PNGDevice) Show(_ context.Context, img *image.RGBA) error {
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, d.Path)
}

func (d *PNGDevice) Sleep() {}
