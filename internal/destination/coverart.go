package destination

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for cover sources served as png
	"os"

	"github.com/nfnt/resize"
)

const (
	// coverFileName is the reserved companion file name; a prior sibling
	// of that name is replaced.
	coverFileName = "cover.jpg"
	// coverDimension is the fixed square size of the companion image.
	coverDimension = 512
)

// writeCompanionCover decodes the staged cover art, resizes it to the
// fixed square dimension, and writes it next to the audiobook.
func writeCompanionCover(storage Storage, dir, coverPath string) error {
	f, err := os.Open(coverPath)
	if err != nil {
		return fmt.Errorf("open cover art: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode cover art: %w", err)
	}

	resized := resize.Resize(coverDimension, coverDimension, img, resize.Lanczos3)

	out, _, err := storage.CreateFile(dir, coverFileName, []string{"image/jpeg"})
	if err != nil {
		return fmt.Errorf("create companion cover: %w", err)
	}
	defer func() { _ = out.Close() }()

	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode companion cover: %w", err)
	}
	return nil
}
