// Package totp computes RFC 6238 time-based one-time codes from the base32
// secrets stored in totp_secret fields.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lockbox/pkg/core"
)

// Period is the step most authenticators use.
const Period = 30 * time.Second

// Digits is the length of a generated code.
const Digits = 6

// ErrInvalidSecret is wrapped by every failure to decode a secret.
var ErrInvalidSecret = errors.New("invalid totp secret")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Normalize strips spaces and upper-cases a secret as users tend to paste
// them grouped and in mixed case.
func Normalize(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
}

// Decode returns the raw key bytes of a base32 secret.
func Decode(secret string) ([]byte, error) {
	clean := Normalize(secret)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	if i := strings.IndexFunc(clean, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '2' && r <= '7' || r == '=')
	}); i >= 0 {
		return nil, fmt.Errorf("%w: character %q at %d", ErrInvalidSecret, clean[i], i)
	}
	key, err := encoding.DecodeString(strings.TrimRight(clean, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: no key material", ErrInvalidSecret)
	}
	return key, nil
}

// Validate reports whether secret decodes to a usable key.
func Validate(secret string) error {
	_, err := Decode(secret)
	return err
}

// Generate returns the code for secret at the given instant using Period.
func Generate(secret string, at time.Time) (string, error) {
	return GenerateStep(secret, Period, at)
}

// GenerateStep returns the code for secret at the given instant.
func GenerateStep(secret string, step time.Duration, at time.Time) (string, error) {
	if step < time.Second {
		return "", core.NewError(core.ErrSchema, "totp", fmt.Errorf("step %s is shorter than one second", step))
	}
	key, err := Decode(secret)
	if err != nil {
		return "", core.NewError(core.ErrSchema, "totp", err)
	}
	counter := uint64(at.Unix()) / uint64(step/time.Second)
	return fmt.Sprintf("%0*d", Digits, hotp(key, counter)), nil
}

// Remaining is how long the code generated at the given instant stays valid.
func Remaining(step time.Duration, at time.Time) time.Duration {
	secs := int64(step / time.Second)
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs-at.Unix()%secs) * time.Second
}

// Format groups a secret in blocks of four for display.
func Format(secret string) string {
	clean := Normalize(secret)
	var b strings.Builder
	for i, r := range clean {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// hotp is the RFC 4226 HMAC-SHA1 code with dynamic truncation.
func hotp(key []byte, counter uint64) uint32 {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	mod := uint32(1)
	for range Digits {
		mod *= 10
	}
	return code % mod
}
