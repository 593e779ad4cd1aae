package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"

	"github.com/corona10/goimagehash"

	"eventphoto/internal/photo"
)

// DefaultMaxDecodeBytes is the largest file whose pixels are decoded.
// Larger files are hashed in full but only their header is read.
const DefaultMaxDecodeBytes = 256 << 20

// Options controls how much work the extractor does per file.
type Options struct {
	// PerceptualHash computes a pHash for near-duplicate detection.
	PerceptualHash bool
	// VerifyDecode fully decodes every image so corrupt files are reported
	// as unreadable even when no perceptual hash is needed.
	VerifyDecode bool
	// FileTimeFallback uses the file modification time when no EXIF
	// capture time is present.
	FileTimeFallback bool
	// MaxDecodeBytes caps the bytes buffered for decoding. 0 means
	// DefaultMaxDecodeBytes.
	MaxDecodeBytes int64
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		VerifyDecode:     true,
		FileTimeFallback: true,
		MaxDecodeBytes:   DefaultMaxDecodeBytes,
	}
}

// Extractor turns source files into PhotoRecords. It is stateless apart from
// its dependencies and safe for concurrent use.
type Extractor struct {
	fsmgr    photo.FilesystemManager
	decoders *Registry
	opts     Options
	logger   photo.Logger
}

// New creates an Extractor. A nil registry means NewDefaultRegistry and a
// nil logger discards output.
func New(fsmgr photo.FilesystemManager, decoders *Registry, opts Options, logger photo.Logger) *Extractor {
	if decoders == nil {
		decoders = NewDefaultRegistry()
	}
	if logger == nil {
		logger = photo.NewNopLogger()
	}
	if opts.MaxDecodeBytes <= 0 {
		opts.MaxDecodeBytes = DefaultMaxDecodeBytes
	}
	return &Extractor{fsmgr: fsmgr, decoders: decoders, opts: opts, logger: logger}
}

// Extract reads path once, hashing the full content and decoding the image
// from the buffered head. Failures are returned as *photo.Error with kind
// UnreadableFile or HashFailure; the file is never modified.
func (e *Extractor) Extract(path *photo.Path) (photo.PhotoRecord, *photo.Error) {
	src := path.String()

	f, err := e.fsmgr.Open(path)
	if err != nil {
		return photo.PhotoRecord{}, photo.NewError(photo.KindUnreadableFile, src, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := &cappedBuffer{max: e.opts.MaxDecodeBytes}
	size, err := io.Copy(io.MultiWriter(h, buf), f)
	if err != nil {
		return photo.PhotoRecord{}, photo.NewError(photo.KindHashFailure, src, fmt.Errorf("reading content: %w", err))
	}
	data := buf.Bytes()

	format := sniffFormat(data, path.Ext())
	decoder, err := e.decoders.Lookup(format)
	if err != nil {
		return photo.PhotoRecord{}, photo.NewError(photo.KindUnreadableFile, src, err)
	}

	cfg, err := safeDecodeConfig(decoder, data)
	if err != nil {
		return photo.PhotoRecord{}, photo.NewError(photo.KindUnreadableFile, src, fmt.Errorf("decoding %s header: %w", format, err))
	}

	rec := photo.PhotoRecord{
		Path:       src,
		Size:       size,
		Checksum:   hex.EncodeToString(h.Sum(nil)),
		TimeSource: photo.TimeSourceNone,
		ModTime:    path.ModTime(),
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     format,
		Status:     photo.DecodeHeaderOnly,
	}

	if (e.opts.PerceptualHash || e.opts.VerifyDecode) && !buf.truncated {
		img, err := safeDecode(decoder, data)
		if err != nil {
			return photo.PhotoRecord{}, photo.NewError(photo.KindUnreadableFile, src, fmt.Errorf("decoding %s: %w", format, err))
		}
		rec.Status = photo.DecodeFull
		if e.opts.PerceptualHash {
			ph, err := goimagehash.PerceptionHash(img)
			if err != nil {
				e.logger.Warn("perceptual hash failed", "path", src, "error", err)
			} else {
				rec.PerceptualHash = ph.GetHash()
				rec.HasPerceptualHash = true
			}
		}
	} else if buf.truncated {
		e.logger.Debug("file exceeds decode limit, header only", "path", src, "size", size)
	}

	if tm, ok := captureTime(format, data); ok {
		rec.CapturedAt = &tm
		rec.TimeSource = photo.TimeSourceExif
	} else if e.opts.FileTimeFallback && !rec.ModTime.IsZero() {
		mt := rec.ModTime
		rec.CapturedAt = &mt
		rec.TimeSource = photo.TimeSourceFile
	}

	return rec, nil
}

// cappedBuffer keeps the first max bytes written to it and discards the rest.
type cappedBuffer struct {
	bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.Len())
	if int64(len(p)) > room {
		b.truncated = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

// Codecs can panic on hostile input; treat that as a decode error.
func safeDecodeConfig(d photo.ImageDecoder, data []byte) (cfg image.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return d.DecodeConfig(bytes.NewReader(data))
}

func safeDecode(d photo.ImageDecoder, data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return d.Decode(bytes.NewReader(data))
}
