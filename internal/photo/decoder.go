package photo

import (
	"image"
	"io"
)

// ImageDecoder is the capability the extractor needs from a codec.
// There is one implementation per format so the extractor never depends on a
// specific codec library.
type ImageDecoder interface {
	// Format returns the short format name, e.g. "jpeg" or "webp".
	Format() string

	// DecodeConfig reads only the header and returns the image dimensions.
	DecodeConfig(r io.Reader) (image.Config, error)

	// Decode decodes the full image.
	Decode(r io.Reader) (image.Image, error)
}
