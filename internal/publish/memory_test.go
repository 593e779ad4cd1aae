package publish

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemoryPublisher(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher("mem")

	if err := p.PutObject(ctx, "b.txt", strings.NewReader("bb"), 2); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if err := p.PutObject(ctx, "a.txt", strings.NewReader("a"), 1); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if err := p.PutObject(ctx, "c.txt", strings.NewReader("c"), 5); err == nil {
		t.Error("PutObject() expected size mismatch error")
	}

	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "a.txt" || keys[1] != "b.txt" {
		t.Errorf("Keys() = %v, want [a.txt b.txt]", keys)
	}
	if data, ok := p.Object("b.txt"); !ok || string(data) != "bb" {
		t.Errorf("Object(b.txt) = %q, %v", data, ok)
	}
	if _, ok := p.Object("c.txt"); ok {
		t.Error("Object(c.txt) stored despite size mismatch")
	}
}

func TestMemoryPublisher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewMemoryPublisher("mem")
	err := p.PutObject(ctx, "a.txt", strings.NewReader("a"), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PutObject() error = %v, want context.Canceled", err)
	}
}
