package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"eventphoto/internal/photo"
)

// EncryptedExt is appended to the key of every encrypted object.
const EncryptedExt = ".age"

// AgePublisher encrypts objects with filippo.io/age before handing them to
// the wrapped publisher. Only public keys are needed to publish; the
// private keys stay with whoever downloads the archive.
type AgePublisher struct {
	next       photo.Publisher
	recipients []age.Recipient
	tmpDir     string
}

// NewAgePublisher wraps next so that every object is encrypted to the given
// X25519 recipients ("age1..." strings).
func NewAgePublisher(next photo.Publisher, recipients []string) (*AgePublisher, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no age recipients given")
	}
	parsed, err := age.ParseRecipients(strings.NewReader(strings.Join(recipients, "\n")))
	if err != nil {
		return nil, fmt.Errorf("parsing age recipients: %w", err)
	}
	return &AgePublisher{next: next, recipients: parsed}, nil
}

func (p *AgePublisher) Name() string {
	return p.next.Name()
}

// PutObject encrypts r into a temp file so the ciphertext size is known
// before upload, then stores it under key + ".age".
func (p *AgePublisher) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(p.tmpDir, "epo-publish-*.age")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	encWriter, err := age.Encrypt(tmp, p.recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	n, err := io.Copy(encWriter, r)
	if err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	encSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("measuring ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding temp file: %w", err)
	}
	return p.next.PutObject(ctx, key+EncryptedExt, tmp, encSize)
}

func (p *AgePublisher) ValidateSetup(ctx context.Context) error {
	return p.next.ValidateSetup(ctx)
}

// Compile-time check that AgePublisher implements photo.Publisher interface
var _ photo.Publisher = (*AgePublisher)(nil)
