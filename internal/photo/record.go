package photo

import "time"

// TimeSource records where a PhotoRecord's capture timestamp came from.
type TimeSource string

const (
	TimeSourceExif TimeSource = "exif"
	TimeSourceFile TimeSource = "file"
	TimeSourceNone TimeSource = "none"
)

// DecodeStatus describes how far the extractor got when decoding an image.
type DecodeStatus string

const (
	DecodeFull       DecodeStatus = "decoded"     // pixels decoded (perceptual hash available)
	DecodeHeaderOnly DecodeStatus = "header-only" // dimensions read, pixels not decoded
	DecodeFailed     DecodeStatus = "failed"
)

// PhotoRecord is the extracted metadata of one source file.
// Records are values: stages copy them, never mutate a record they did not create.
type PhotoRecord struct {
	Path       string
	Size       int64
	Checksum   string     // SHA-256 of the file content, lowercase hex
	CapturedAt *time.Time // nil when no timestamp could be derived
	TimeSource TimeSource
	ModTime    time.Time
	Width      int
	Height     int
	Format     string // decoder format name, e.g. "jpeg", "webp"
	Status     DecodeStatus

	// PerceptualHash is only meaningful when HasPerceptualHash is true.
	PerceptualHash    uint64
	HasPerceptualHash bool
}

// CreatedAt returns the time used to order otherwise identical records:
// the capture time when known, else the file modification time.
func (r PhotoRecord) CreatedAt() time.Time {
	if r.CapturedAt != nil {
		return *r.CapturedAt
	}
	return r.ModTime
}

// HasTimestamp reports whether the record carries a capture timestamp.
func (r PhotoRecord) HasTimestamp() bool {
	return r.CapturedAt != nil
}

// EventGroup is an ordered run of photos judged to belong to one event.
type EventGroup struct {
	Name    string
	Start   time.Time // zero for the unknown group
	End     time.Time
	Unknown bool // true for the group of records without timestamps
	Records []PhotoRecord
}

// Len returns the number of records in the group.
func (g *EventGroup) Len() int {
	return len(g.Records)
}

// DuplicateSet is one exact-hash cluster: the canonical record plus the
// records marked as duplicates of it.
type DuplicateSet struct {
	Checksum   string
	Canonical  PhotoRecord
	Duplicates []PhotoRecord

	// PreviousDestination is set when the canonical copy was organized by an
	// earlier run rather than being part of this one.
	PreviousDestination string
}

// NearDuplicate flags two canonical records whose perceptual hashes are
// similar enough to be likely duplicates. Nothing is discarded; the caller
// decides what to do with the pair.
type NearDuplicate struct {
	A          string // path of the earlier record
	B          string // path of the later record
	Similarity float64
}
