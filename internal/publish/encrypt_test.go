package publish

import (
	"bytes"
	"context"
	"io"
	"testing"

	"filippo.io/age"
)

func TestAgePublisher_PutObject(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "small", input: []byte("jpeg bytes")},
		{name: "empty", input: []byte{}},
		{name: "spans chunks", input: bytes.Repeat([]byte("abcdef"), 30000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := NewMemoryPublisher("archive")
			p, err := NewAgePublisher(mem, []string{identity.Recipient().String()})
			if err != nil {
				t.Fatalf("NewAgePublisher() error = %v", err)
			}
			p.tmpDir = t.TempDir()

			if err := p.PutObject(context.Background(), "show/a.jpg", bytes.NewReader(tt.input), int64(len(tt.input))); err != nil {
				t.Fatalf("PutObject() error = %v", err)
			}
			if _, ok := mem.Object("show/a.jpg"); ok {
				t.Error("plaintext key should not be stored")
			}
			ciphertext, ok := mem.Object("show/a.jpg.age")
			if !ok {
				t.Fatalf("encrypted object missing, keys = %v", mem.Keys())
			}
			if len(tt.input) > 0 && bytes.Contains(ciphertext, tt.input) {
				t.Error("ciphertext contains plaintext")
			}

			dec, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			got, err := io.ReadAll(dec)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("decrypted %d bytes, want %d", len(got), len(tt.input))
			}
		})
	}
}

func TestAgePublisher_SizeMismatch(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}
	mem := NewMemoryPublisher("archive")
	p, err := NewAgePublisher(mem, []string{identity.Recipient().String()})
	if err != nil {
		t.Fatalf("NewAgePublisher() error = %v", err)
	}
	p.tmpDir = t.TempDir()

	if err := p.PutObject(context.Background(), "a.jpg", bytes.NewReader([]byte("abc")), 10); err == nil {
		t.Error("PutObject() expected size mismatch error")
	}
	if len(mem.Keys()) != 0 {
		t.Errorf("Keys() = %v, want none", mem.Keys())
	}
}

func TestNewAgePublisher_InvalidRecipients(t *testing.T) {
	mem := NewMemoryPublisher("archive")
	tests := []struct {
		name       string
		recipients []string
	}{
		{"none", nil},
		{"malformed", []string{"age1notakey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAgePublisher(mem, tt.recipients); err == nil {
				t.Error("NewAgePublisher() expected error")
			}
		})
	}
}
