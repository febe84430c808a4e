// Package imaging turns uploaded photos into bounded JPEG input for the detector.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photolabels/internal/models"
)

const jpegQuality = 90

// Normalized is a decoded photo re-encoded as JPEG.
type Normalized struct {
	JPEG     []byte
	Format   string      // format of the original upload
	Original image.Point // size before downscaling
	Size     image.Point // size of JPEG
}

// Normalize decodes data, downscales it so that neither side exceeds
// maxDimension (0 disables downscaling) and re-encodes it as JPEG.
// Every failure wraps models.ErrDecode.
func Normalize(data []byte, maxDimension int) (*Normalized, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(models.ErrDecode, "empty image")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(models.ErrDecode, "decode: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Wrap(models.ErrDecode, "decoded image is empty")
	}
	original := bounds.Size()

	if maxDimension > 0 && (original.X > maxDimension || original.Y > maxDimension) {
		img = resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrapf(models.ErrDecode, "encode jpeg: %v", err)
	}

	return &Normalized{
		JPEG:     buf.Bytes(),
		Format:   format,
		Original: original,
		Size:     img.Bounds().Size(),
	}, nil
}
