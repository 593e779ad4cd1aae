package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Pattern draws a deterministic image whose content depends on seed, so
// different seeds give perceptually different pictures.
func Pattern(w, h int, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			switch seed % 4 {
			case 0: // horizontal gradient
				v = uint8(x * 255 / max(w-1, 1))
			case 1: // vertical gradient
				v = uint8(y * 255 / max(h-1, 1))
			case 2: // checkerboard
				if (x/8+y/8)%2 == 0 {
					v = 255
				}
			default: // diagonal stripes
				if ((x+y)/6)%2 == 0 {
					v = 255
				}
			}
			img.Set(x, y, color.RGBA{R: v, G: uint8(seed * 37), B: 255 - v, A: 255})
		}
	}
	return img
}

// PNGBytes encodes Pattern(w, h, seed) as PNG.
func PNGBytes(t *testing.T, w, h, seed int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Pattern(w, h, seed)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// JPEGBytes encodes Pattern(w, h, seed) as JPEG.
func JPEGBytes(t *testing.T, w, h, seed int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Pattern(w, h, seed), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// ExifBlock builds a minimal little-endian TIFF/EXIF structure holding only
// DateTimeOriginal, formatted the way cameras write it.
func ExifBlock(dateTime string) []byte {
	le := func(b *bytes.Buffer, v any) {
		switch x := v.(type) {
		case uint16:
			b.WriteByte(byte(x))
			b.WriteByte(byte(x >> 8))
		case uint32:
			b.WriteByte(byte(x))
			b.WriteByte(byte(x >> 8))
			b.WriteByte(byte(x >> 16))
			b.WriteByte(byte(x >> 24))
		}
	}
	const (
		ifd0Offset = 8
		exifOffset = ifd0Offset + 2 + 12 + 4
		dataOffset = exifOffset + 2 + 12 + 4
	)
	value := append([]byte(dateTime), 0)

	var b bytes.Buffer
	b.WriteString("II")
	le(&b, uint16(42))
	le(&b, uint32(ifd0Offset))
	// IFD0: pointer to the Exif sub-IFD
	le(&b, uint16(1))
	le(&b, uint16(0x8769))
	le(&b, uint16(4))
	le(&b, uint32(1))
	le(&b, uint32(exifOffset))
	le(&b, uint32(0))
	// Exif IFD: DateTimeOriginal
	le(&b, uint16(1))
	le(&b, uint16(0x9003))
	le(&b, uint16(2))
	le(&b, uint32(len(value)))
	le(&b, uint32(dataOffset))
	le(&b, uint32(0))
	b.Write(value)
	return b.Bytes()
}

// JPEGWithExif returns a JPEG whose APP1 segment carries DateTimeOriginal.
func JPEGWithExif(t *testing.T, w, h, seed int, dateTime string) []byte {
	t.Helper()
	plain := JPEGBytes(t, w, h, seed)
	payload := append([]byte("Exif\x00\x00"), ExifBlock(dateTime)...)
	segLen := len(payload) + 2

	var out bytes.Buffer
	out.Write(plain[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1, byte(segLen >> 8), byte(segLen)})
	out.Write(payload)
	out.Write(plain[2:])
	return out.Bytes()
}
