package extract

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"eventphoto/internal/photo"
)

// codec adapts a pair of package-level decode functions to photo.ImageDecoder.
type codec struct {
	format       string
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

func (c *codec) Format() string                                 { return c.format }
func (c *codec) Decode(r io.Reader) (image.Image, error)        { return c.decode(r) }
func (c *codec) DecodeConfig(r io.Reader) (image.Config, error) { return c.decodeConfig(r) }

// JPEGDecoder decodes JPEG with the standard library codec.
func JPEGDecoder() photo.ImageDecoder {
	return &codec{format: "jpeg", decode: jpeg.Decode, decodeConfig: jpeg.DecodeConfig}
}

// PNGDecoder decodes PNG with the standard library codec.
func PNGDecoder() photo.ImageDecoder {
	return &codec{format: "png", decode: png.Decode, decodeConfig: png.DecodeConfig}
}

// GIFDecoder decodes the first frame of a GIF.
func GIFDecoder() photo.ImageDecoder {
	return &codec{format: "gif", decode: gif.Decode, decodeConfig: gif.DecodeConfig}
}

// BMPDecoder decodes BMP via golang.org/x/image/bmp.
func BMPDecoder() photo.ImageDecoder {
	return &codec{format: "bmp", decode: bmp.Decode, decodeConfig: bmp.DecodeConfig}
}

// TIFFDecoder decodes TIFF via golang.org/x/image/tiff.
func TIFFDecoder() photo.ImageDecoder {
	return &codec{format: "tiff", decode: tiff.Decode, decodeConfig: tiff.DecodeConfig}
}

// WebPDecoder decodes lossy and lossless WEBP via golang.org/x/image/webp.
func WebPDecoder() photo.ImageDecoder {
	return &codec{format: "webp", decode: webp.Decode, decodeConfig: webp.DecodeConfig}
}

// Registry maps format names to decoders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]photo.ImageDecoder
}

// NewRegistry creates a registry holding the given decoders.
func NewRegistry(decoders ...photo.ImageDecoder) *Registry {
	r := &Registry{decoders: make(map[string]photo.ImageDecoder)}
	for _, d := range decoders {
		r.Register(d)
	}
	return r
}

// NewDefaultRegistry returns a registry with every built-in decoder.
func NewDefaultRegistry() *Registry {
	return NewRegistry(JPEGDecoder(), PNGDecoder(), GIFDecoder(), BMPDecoder(), TIFFDecoder(), WebPDecoder())
}

// Register adds or replaces the decoder for d.Format().
func (r *Registry) Register(d photo.ImageDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[d.Format()] = d
}

// Lookup returns the decoder for format.
func (r *Registry) Lookup(format string) (photo.ImageDecoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", photo.ErrUnsupported, format)
	}
	return d, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]string, 0, len(r.decoders))
	for f := range r.decoders {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// DecodeImage sniffs the format of data (falling back to ext) and decodes it
// with the matching registered decoder.
func (r *Registry) DecodeImage(data []byte, ext string) (image.Image, string, error) {
	format := sniffFormat(data, ext)
	d, err := r.Lookup(format)
	if err != nil {
		return nil, "", err
	}
	img, err := safeDecode(d, data)
	if err != nil {
		return nil, format, fmt.Errorf("decoding %s: %w", format, err)
	}
	return img, format, nil
}
