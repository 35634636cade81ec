package codec

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/aretw0/lockbox/pkg/core"
)

// Key is a derived archive key together with the salt and parameters that
// produced it. The owner must call Wipe when done.
type Key struct {
	material []byte
	salt     [SaltSize]byte
	kdf      KDFParams
}

// DeriveKey derives a key under a fresh random salt.
func DeriveKey(passphrase []byte, kdf KDFParams) (*Key, error) {
	if err := kdf.Check(); err != nil {
		return nil, core.NewError(core.ErrCrypto, "derive key", err)
	}
	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, core.NewError(core.ErrCrypto, "derive key", fmt.Errorf("salt: %w", err))
	}
	return deriveKey(passphrase, salt, kdf), nil
}

func deriveKey(passphrase []byte, salt [SaltSize]byte, kdf KDFParams) *Key {
	return &Key{
		material: argon2.IDKey(passphrase, salt[:], kdf.Time, kdf.MemoryKiB, kdf.Threads, chacha20poly1305.KeySize),
		salt:     salt,
		kdf:      kdf,
	}
}

// KDF returns the parameters the key was derived with.
func (k *Key) KDF() KDFParams {
	return k.kdf
}

// Matches reports whether passphrase derives this key.
func (k *Key) Matches(passphrase []byte) bool {
	if k == nil || k.material == nil {
		return false
	}
	other := deriveKey(passphrase, k.salt, k.kdf)
	defer other.Wipe()
	return subtle.ConstantTimeCompare(k.material, other.material) == 1
}

// Wiped reports whether the key material has been cleared.
func (k *Key) Wiped() bool {
	return k == nil || k.material == nil
}

// Wipe zeroes the key material.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	clear(k.material)
	k.material = nil
	clear(k.salt[:])
}
