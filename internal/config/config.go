package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for epo.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn or error
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Event      EventConfig      `toml:"event"`
	Gallery    GalleryConfig    `toml:"gallery"`
	Journal    JournalConfig    `toml:"journal"`
	Publish    []PublishConfig  `toml:"publish"`
}

// PipelineConfig holds the default options bundle for organize runs.
// Every field can be overridden per run from the command line.
type PipelineConfig struct {
	Workers          int      `toml:"workers"`            // 0 means one per CPU
	EventGap         Duration `toml:"event_gap"`          // e.g. "2h"
	DedupThreshold   float64  `toml:"dedup_threshold"`    // 0 disables near-duplicate flags
	Conflict         string   `toml:"conflict"`           // "rename", "skip" or "overwrite"
	Transfer         string   `toml:"transfer"`           // "move" or "copy"
	Recursive        bool     `toml:"recursive"`          // descend into subdirectories of each source
	FileTimeFallback bool     `toml:"file_time_fallback"` // use mtime when EXIF has no date
	SkipOrganized    bool     `toml:"skip_organized"`     // treat content organized by earlier runs as duplicate
	MaxDecodeBytes   int64    `toml:"max_decode_bytes"`   // bytes buffered per file for decoding
}

// FilesystemConfig holds discovery settings.
type FilesystemConfig struct {
	Include []string `toml:"include"` // extensions, e.g. [".jpg", ".webp"]; empty means the defaults
	Exclude []string `toml:"exclude"`
	Ignore  []string `toml:"ignore"` // gitignore-style patterns
}

// EventConfig describes the event being organized. It feeds group names,
// credit file names and the gallery.
type EventConfig struct {
	Name         string `toml:"name"`
	Venue        string `toml:"venue"`
	Location     string `toml:"location"`
	Date         string `toml:"date"`
	Photographer string `toml:"photographer"`
	Label        string `toml:"label"` // folder prefix; defaults to the venue
}

// GalleryConfig controls gallery generation after organizing.
type GalleryConfig struct {
	Enabled bool `toml:"enabled"`
	Quality int  `toml:"quality"` // 1..100
}

// JournalConfig represents configuration for the run journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// PublishConfig represents a publish target for organized events.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type PublishConfig struct {
	Type string `toml:"type"` // "filesystem", "memory" or "s3"
	Name string `toml:"name"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// AgeRecipients encrypts every object to these age public keys
	// ("age1...") before upload. Applies to any target type.
	AgeRecipients []string `toml:"age_recipients,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Pipeline: PipelineConfig{
			EventGap:         Duration{2 * time.Hour},
			Conflict:         "rename",
			Transfer:         "move",
			Recursive:        true,
			FileTimeFallback: true,
			MaxDecodeBytes:   256 << 20,
		},
		Gallery: GalleryConfig{Quality: 85},
		Journal: JournalConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "journal")},
	}
}

// Validate checks value ranges and union types.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	if p.EventGap.Duration <= 0 {
		return fmt.Errorf("pipeline.event_gap must be positive")
	}
	if p.DedupThreshold < 0 || p.DedupThreshold > 1 {
		return fmt.Errorf("pipeline.dedup_threshold must be within [0,1]")
	}
	switch p.Conflict {
	case "rename", "rename-with-suffix", "skip", "overwrite":
	default:
		return fmt.Errorf("pipeline.conflict: unknown policy %q", p.Conflict)
	}
	switch p.Transfer {
	case "move", "copy":
	default:
		return fmt.Errorf("pipeline.transfer: unknown mode %q", p.Transfer)
	}
	if c.Gallery.Enabled && (c.Gallery.Quality < 1 || c.Gallery.Quality > 100) {
		return fmt.Errorf("gallery.quality must be within 1..100")
	}
	switch c.Journal.Type {
	case "sqlite", "memory", "none", "":
	default:
		return fmt.Errorf("journal.type: unknown type %q", c.Journal.Type)
	}
	seen := make(map[string]bool)
	for _, pc := range c.Publish {
		if pc.Name == "" {
			return fmt.Errorf("publish target of type %q has no name", pc.Type)
		}
		if seen[pc.Name] {
			return fmt.Errorf("duplicate publish target name %q", pc.Name)
		}
		seen[pc.Name] = true
	}
	return nil
}

// PublishTarget returns the publish target with the given name, or the
// first one when name is empty.
func (c *Config) PublishTarget(name string) (PublishConfig, error) {
	if len(c.Publish) == 0 {
		return PublishConfig{}, fmt.Errorf("no publish targets configured")
	}
	if name == "" {
		return c.Publish[0], nil
	}
	for _, pc := range c.Publish {
		if pc.Name == name {
			return pc, nil
		}
	}
	return PublishConfig{}, fmt.Errorf("unknown publish target %q", name)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys the input does not
// define keep the NewConfig defaults for its base_dir.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults(md)
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. Keys missing
// from the file keep the NewConfig defaults for the file's base_dir.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills every key the file did not define. Checking md rather
// than zero values keeps an explicit "recursive = false" intact.
func (c *Config) applyDefaults(md toml.MetaData) {
	d := NewConfig(c.BaseDir)
	fill := func(key []string, apply func()) {
		if !md.IsDefined(key...) {
			apply()
		}
	}

	fill([]string{"log_dir"}, func() { c.LogDir = d.LogDir })
	fill([]string{"log_level"}, func() { c.LogLevel = d.LogLevel })

	fill([]string{"pipeline", "event_gap"}, func() { c.Pipeline.EventGap = d.Pipeline.EventGap })
	fill([]string{"pipeline", "conflict"}, func() { c.Pipeline.Conflict = d.Pipeline.Conflict })
	fill([]string{"pipeline", "transfer"}, func() { c.Pipeline.Transfer = d.Pipeline.Transfer })
	fill([]string{"pipeline", "recursive"}, func() { c.Pipeline.Recursive = d.Pipeline.Recursive })
	fill([]string{"pipeline", "file_time_fallback"}, func() { c.Pipeline.FileTimeFallback = d.Pipeline.FileTimeFallback })
	fill([]string{"pipeline", "max_decode_bytes"}, func() { c.Pipeline.MaxDecodeBytes = d.Pipeline.MaxDecodeBytes })

	fill([]string{"gallery", "quality"}, func() { c.Gallery.Quality = d.Gallery.Quality })

	fill([]string{"journal", "type"}, func() { c.Journal.Type = d.Journal.Type })
	if c.Journal.Type == "sqlite" {
		fill([]string{"journal", "data_dir"}, func() { c.Journal.DataDir = d.Journal.DataDir })
	}
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
