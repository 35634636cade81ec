package codec

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/aretw0/lockbox/pkg/core"
)

// Encode derives a key from passphrase and seals files. The key is wiped
// before returning.
func Encode(files core.FileMap, passphrase []byte, opts Options) ([]byte, error) {
	key, err := DeriveKey(passphrase, opts.KDF)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()
	return Seal(files, key, opts.Compression)
}

// Seal compresses and encrypts files with an already derived key. Every call
// uses a fresh nonce.
func Seal(files core.FileMap, key *Key, comp CompressionOptions) ([]byte, error) {
	if key.Wiped() {
		return nil, core.NewError(core.ErrCrypto, "encode", fmt.Errorf("key has been wiped"))
	}
	if err := comp.Check(); err != nil {
		return nil, core.NewError(core.ErrCrypto, "encode", err)
	}

	payload, err := pack(files, comp)
	if err != nil {
		return nil, core.NewError(core.ErrCrypto, "encode", fmt.Errorf("compress: %w", err))
	}
	defer clear(payload)

	h := Header{Version: ContainerVersion, KDF: key.kdf, Salt: key.salt, Compression: comp}
	if _, err := rand.Read(h.Nonce[:]); err != nil {
		return nil, core.NewError(core.ErrCrypto, "encode", fmt.Errorf("nonce: %w", err))
	}
	header, err := h.MarshalBinary()
	if err != nil {
		return nil, core.NewError(core.ErrCrypto, "encode", err)
	}

	aead, err := chacha20poly1305.NewX(key.material)
	if err != nil {
		return nil, core.NewError(core.ErrCrypto, "encode", err)
	}
	out := make([]byte, 0, len(header)+len(payload)+aead.Overhead())
	out = append(out, header...)
	return aead.Seal(out, h.Nonce[:], payload, header), nil
}

// Decode verifies and decrypts an archive. The derived key is wiped before
// returning.
func Decode(data []byte, passphrase []byte) (core.FileMap, error) {
	files, key, err := Open(data, passphrase)
	if err != nil {
		return nil, err
	}
	key.Wipe()
	return files, nil
}

// Open decodes an archive and hands the derived key to the caller so later
// saves can reuse it. A failed integrity check returns ErrAuth and no data.
func Open(data []byte, passphrase []byte) (core.FileMap, *Key, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}

	key := deriveKey(passphrase, h.Salt, h.KDF)
	aead, err := chacha20poly1305.NewX(key.material)
	if err != nil {
		key.Wipe()
		return nil, nil, core.NewError(core.ErrCrypto, "decode", err)
	}

	plaintext, err := aead.Open(nil, h.Nonce[:], data[HeaderSize:], data[:HeaderSize])
	if err != nil {
		key.Wipe()
		return nil, nil, core.NewError(core.ErrAuth, "decode", nil)
	}
	defer clear(plaintext)

	files, err := unpack(plaintext, h.Compression)
	if err != nil {
		key.Wipe()
		return nil, nil, core.NewError(core.ErrCorruption, "decode", err)
	}
	return files, key, nil
}
