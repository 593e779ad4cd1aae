package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"eventphoto/internal/photo"
)

// Report summarizes one Publish call.
type Report struct {
	Target  string
	Event   string
	Keys    []string
	Bytes   int64
	Skipped int // temp and hidden files
}

// Publish uploads every file under the organized event directory dir to p,
// keyed as <prefix>/<event>/<relative path>. Files are uploaded in lexical
// order; the first failed upload stops the walk.
func Publish(ctx context.Context, p photo.Publisher, dir, prefix string, logger photo.Logger) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat event directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	event := filepath.Base(filepath.Clean(dir))
	report := &Report{Target: p.Name(), Event: event}
	logger.Info("publishing event", "event", event, "target", p.Name())

	err = filepath.WalkDir(dir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("publish interrupted: %w", photo.ErrCancelled)
		}
		if strings.HasPrefix(d.Name(), ".") && fp != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			report.Skipped++
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, fp)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		key := path.Join(prefix, event, filepath.ToSlash(rel))

		size, err := putFile(ctx, p, key, fp)
		if err != nil {
			return err
		}
		report.Keys = append(report.Keys, key)
		report.Bytes += size
		logger.Debug("published object", "key", key, "size", size)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("publishing %s: %w", event, err)
	}

	logger.Info("published event", "event", event, "objects", len(report.Keys), "bytes", report.Bytes)
	return report, nil
}

func putFile(ctx context.Context, p photo.Publisher, key, fp string) (int64, error) {
	f, err := os.Open(fp)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", fp, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", fp, err)
	}
	if err := p.PutObject(ctx, key, f, info.Size()); err != nil {
		return 0, fmt.Errorf("storing %s: %w", key, err)
	}
	return info.Size(), nil
}
