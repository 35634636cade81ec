// Package codec converts a FileMap to and from the encrypted, compressed
// archive container.
//
// Container layout (big endian):
//
//	magic "LKBX" | version u8 | kdf time u32 | kdf memory KiB u32 | kdf threads u8 |
//	salt [16] | compression level u8 | flags u8 | nonce [24] | ciphertext
//
// The header is authenticated as additional data, so tampering with the KDF
// or compression parameters fails like a wrong passphrase.
package codec

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/aretw0/lockbox/pkg/core"
)

const (
	magic = "LKBX"

	// ContainerVersion is the header layout written by Encode.
	ContainerVersion = 1

	// SaltSize is the length of the per-archive KDF salt.
	SaltSize = 16

	// HeaderSize is the fixed size of the container header.
	HeaderSize = 4 + 1 + 4 + 4 + 1 + SaltSize + 1 + 1 + chacha20poly1305.NonceSizeX

	flagSolid = 1 << 0

	// MaxPayloadSize bounds the decompressed size of an archive.
	MaxPayloadSize = 1 << 30

	maxKDFMemoryKiB = 4 << 20
)

// KDFParams tunes Argon2id.
type KDFParams struct {
	Time      uint32 `yaml:"time" json:"time"`
	MemoryKiB uint32 `yaml:"memory_kib" json:"memory_kib"`
	Threads   uint8  `yaml:"threads" json:"threads"`
}

// DefaultKDFParams follows the RFC 9106 second recommended profile.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// Check rejects parameters Argon2id cannot run with.
func (p KDFParams) Check() error {
	switch {
	case p.Time < 1:
		return fmt.Errorf("kdf time must be at least 1")
	case p.Threads < 1:
		return fmt.Errorf("kdf threads must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("kdf memory must be at least 8 KiB per thread")
	case p.MemoryKiB > maxKDFMemoryKiB:
		return fmt.Errorf("kdf memory %d KiB exceeds limit", p.MemoryKiB)
	}
	return nil
}

// CompressionOptions selects the compression of the payload.
type CompressionOptions struct {
	// Level is the deflate level, 0 (store) to 9 (best).
	Level int `yaml:"level" json:"level"`
	// Solid packs every file into one compressed stream. Better ratio, no
	// random access.
	Solid bool `yaml:"solid" json:"solid"`
}

// DefaultCompression returns a balanced solid profile.
func DefaultCompression() CompressionOptions {
	return CompressionOptions{Level: 6, Solid: true}
}

// Check validates the level.
func (c CompressionOptions) Check() error {
	if c.Level < 0 || c.Level > 9 {
		return fmt.Errorf("compression level %d out of range 0-9", c.Level)
	}
	return nil
}

// Options groups the encode parameters.
type Options struct {
	KDF         KDFParams
	Compression CompressionOptions
}

// DefaultOptions returns the default encode parameters.
func DefaultOptions() Options {
	return Options{KDF: DefaultKDFParams(), Compression: DefaultCompression()}
}

// Header is the plaintext prefix of an archive.
type Header struct {
	Version     uint8
	KDF         KDFParams
	Salt        [SaltSize]byte
	Compression CompressionOptions
	Nonce       [chacha20poly1305.NonceSizeX]byte
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, HeaderSize)
	b = append(b, magic...)
	b = append(b, h.Version)
	b = binary.BigEndian.AppendUint32(b, h.KDF.Time)
	b = binary.BigEndian.AppendUint32(b, h.KDF.MemoryKiB)
	b = append(b, h.KDF.Threads)
	b = append(b, h.Salt[:]...)
	b = append(b, uint8(h.Compression.Level))
	var flags uint8
	if h.Compression.Solid {
		flags |= flagSolid
	}
	b = append(b, flags)
	b = append(b, h.Nonce[:]...)
	return b, nil
}

// ParseHeader decodes the header at the start of data. Any structural
// problem is reported as ErrCorruption.
func ParseHeader(data []byte) (Header, error) {
	corrupt := func(format string, args ...any) (Header, error) {
		return Header{}, core.NewError(core.ErrCorruption, "parse header", fmt.Errorf(format, args...))
	}
	if len(data) < HeaderSize {
		return corrupt("container too short: %d bytes", len(data))
	}
	if string(data[:4]) != magic {
		return corrupt("not a lockbox archive")
	}

	var h Header
	off := 4
	h.Version = data[off]
	off++
	if h.Version != ContainerVersion {
		return corrupt("unsupported container version %d", h.Version)
	}
	h.KDF.Time = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.KDF.MemoryKiB = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.KDF.Threads = data[off]
	off++
	off += copy(h.Salt[:], data[off:off+SaltSize])
	h.Compression.Level = int(data[off])
	off++
	flags := data[off]
	off++
	if flags&^flagSolid != 0 {
		return corrupt("unknown header flags %#x", flags)
	}
	h.Compression.Solid = flags&flagSolid != 0
	copy(h.Nonce[:], data[off:off+chacha20poly1305.NonceSizeX])

	if err := h.KDF.Check(); err != nil {
		return corrupt("%v", err)
	}
	if err := h.Compression.Check(); err != nil {
		return corrupt("%v", err)
	}
	return h, nil
}

// Inspect returns the header of an archive without decrypting it.
func Inspect(data []byte) (Header, error) {
	return ParseHeader(data)
}
