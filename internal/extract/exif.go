package extract

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

var registerMakerNotes sync.Once

// captureTime reads DateTimeOriginal (or DateTime) from the EXIF block of a
// JPEG, TIFF or WEBP file. It reports false when no usable timestamp exists.
func captureTime(format string, data []byte) (tm time.Time, ok bool) {
	registerMakerNotes.Do(func() {
		// Camera makernote parsing, currently Nikon and Canon.
		exif.RegisterParsers(mknote.All...)
	})

	var raw []byte
	switch format {
	case "jpeg", "tiff":
		raw = data
	case "webp":
		raw = webpExifChunk(data)
	}
	if len(raw) == 0 {
		return time.Time{}, false
	}

	defer func() {
		if recover() != nil {
			tm, ok = time.Time{}, false
		}
	}()

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return time.Time{}, false
	}
	tm, err = x.DateTime()
	if err != nil || tm.IsZero() {
		return time.Time{}, false
	}
	return tm, true
}

// webpExifChunk returns the payload of the EXIF chunk of a RIFF/WEBP
// container, without the optional "Exif\0\0" prefix.
func webpExifChunk(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil
	}
	off := 12
	for off+8 <= len(data) {
		fourCC := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		start := off + 8
		if size < 0 || start+size > len(data) {
			return nil
		}
		if fourCC == "EXIF" {
			return bytes.TrimPrefix(data[start:start+size], []byte("Exif\x00\x00"))
		}
		// Chunks are padded to an even size.
		off = start + size + size%2
	}
	return nil
}
