package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/aretw0/lockbox/pkg/codec"
	"github.com/aretw0/lockbox/pkg/validate"
)

// Config is the configuration surface of the vault engine.
type Config struct {
	Archive    ArchiveConfig    `yaml:"archive"`
	KDF        codec.KDFParams  `yaml:"kdf"`
	Validation validate.Options `yaml:"validation"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Backup     BackupConfig     `yaml:"backup"`
	Lock       LockConfig       `yaml:"lock"`
	Passphrase PassphraseConfig `yaml:"passphrase"`
}

// ArchiveConfig selects the payload compression.
type ArchiveConfig struct {
	CompressionLevel int  `yaml:"compression_level"`
	Solid            bool `yaml:"solid"`
}

// TimeoutsConfig bounds blocking work.
type TimeoutsConfig struct {
	Lock      time.Duration `yaml:"lock"`
	Operation time.Duration `yaml:"operation"`
}

// BackupConfig controls rotation of previous archive versions.
type BackupConfig struct {
	Count int  `yaml:"count"`
	Auto  bool `yaml:"auto"`
}

// LockConfig controls the archive lock file.
type LockConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

// PassphraseConfig is the passphrase policy.
type PassphraseConfig struct {
	MinLength int `yaml:"min_length"`
}

// Default returns the built-in configuration.
func Default() Config {
	comp := codec.DefaultCompression()
	return Config{
		Archive:    ArchiveConfig{CompressionLevel: comp.Level, Solid: comp.Solid},
		KDF:        codec.DefaultKDFParams(),
		Validation: validate.DefaultOptions(),
		Timeouts:   TimeoutsConfig{Lock: 5 * time.Second, Operation: 2 * time.Minute},
		Backup:     BackupConfig{Count: 3, Auto: true},
		Lock:       LockConfig{StaleAfter: time.Hour},
		Passphrase: PassphraseConfig{MinLength: 8},
	}
}

// Compression returns the codec compression options.
func (c Config) Compression() codec.CompressionOptions {
	return codec.CompressionOptions{Level: c.Archive.CompressionLevel, Solid: c.Archive.Solid}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.KDF,
		validation.Field(&c.KDF.Time, validation.Required, validation.Min(uint32(1))),
		validation.Field(&c.KDF.MemoryKiB, validation.Required, validation.Min(uint32(8*1024)), validation.Max(uint32(4*1024*1024))),
		validation.Field(&c.KDF.Threads, validation.Required, validation.Min(uint8(1))),
	); err != nil {
		return err
	}
	if err := c.Timeouts.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	if err := c.Lock.Validate(); err != nil {
		return err
	}
	return c.Passphrase.Validate()
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CompressionLevel, validation.Min(0), validation.Max(9)),
	)
}

// Validate validates the timeouts.
func (c *TimeoutsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Lock, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Operation, validation.Min(time.Duration(0))),
	)
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Count, validation.Min(0), validation.Max(100)),
	)
}

// Validate validates the lock configuration.
func (c *LockConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StaleAfter, validation.Min(time.Duration(0))),
	)
}

// Validate validates the passphrase policy.
func (c *PassphraseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinLength, validation.Required, validation.Min(1), validation.Max(1024)),
	)
}
