package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eventphoto/internal/photo"
)

func writeEvent(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "the-hall-2024-01-15")
	files := map[string]string{
		"a.jpg":              "aaaa",
		"b.jpg":              "bb",
		"index.html":         "<html>",
		"thumbnails/a.jpg":   "t",
		".tmp-123":           "partial",
		".hidden/secret.txt": "nope",
	}
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(p, []byte(data), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return dir
}

func TestPublish(t *testing.T) {
	dir := writeEvent(t)
	p := NewMemoryPublisher("mem")

	report, err := Publish(context.Background(), p, dir, "galleries", photo.NewNopLogger())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{
		"galleries/the-hall-2024-01-15/a.jpg",
		"galleries/the-hall-2024-01-15/b.jpg",
		"galleries/the-hall-2024-01-15/index.html",
		"galleries/the-hall-2024-01-15/thumbnails/a.jpg",
	}
	if len(report.Keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", report.Keys, want)
	}
	for i, k := range want {
		if report.Keys[i] != k {
			t.Errorf("Keys[%d] = %q, want %q", i, report.Keys[i], k)
		}
	}
	if report.Bytes != 13 {
		t.Errorf("Bytes = %d, want 13", report.Bytes)
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	if data, ok := p.Object("galleries/the-hall-2024-01-15/index.html"); !ok || string(data) != "<html>" {
		t.Errorf("index.html = %q, %v", data, ok)
	}
}

func TestPublish_NoPrefix(t *testing.T) {
	dir := writeEvent(t)
	p := NewMemoryPublisher("mem")

	if _, err := Publish(context.Background(), p, dir, "", photo.NewNopLogger()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, ok := p.Object("the-hall-2024-01-15/a.jpg"); !ok {
		t.Errorf("Keys() = %v, want unprefixed keys", p.Keys())
	}
}

func TestPublish_Cancelled(t *testing.T) {
	dir := writeEvent(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Publish(ctx, NewMemoryPublisher("mem"), dir, "", photo.NewNopLogger())
	if !errors.Is(err, photo.ErrCancelled) {
		t.Errorf("Publish() error = %v, want ErrCancelled", err)
	}
}

func TestPublish_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(f, []byte("x"), 0644)

	if _, err := Publish(context.Background(), NewMemoryPublisher("mem"), f, "", photo.NewNopLogger()); err == nil {
		t.Error("Publish() expected error for a file")
	}
	if _, err := Publish(context.Background(), NewMemoryPublisher("mem"), "/nonexistent/event", "", photo.NewNopLogger()); err == nil {
		t.Error("Publish() expected error for a missing directory")
	}
}
