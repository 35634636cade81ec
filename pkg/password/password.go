// Package password generates random passwords and passphrases and scores
// the strength of existing ones.
package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Character classes used by Generate.
const (
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits    = "0123456789"
	Symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	Ambiguous = "0O1lI"
)

var (
	ErrEmptyCharset = errors.New("character set is empty")
	ErrNoLength     = errors.New("length must be greater than zero")
)

// Options select the alphabet and length of a generated password. A
// non-empty Charset replaces the class flags.
type Options struct {
	Length           int
	Lowercase        bool
	Uppercase        bool
	Digits           bool
	Symbols          bool
	ExcludeAmbiguous bool
	Charset          string
}

// DefaultOptions returns 16 characters drawn from every class.
func DefaultOptions() Options {
	return Options{Length: 16, Lowercase: true, Uppercase: true, Digits: true, Symbols: true}
}

func (o Options) charset() []rune {
	if o.Charset != "" {
		return []rune(o.Charset)
	}
	var b strings.Builder
	for _, class := range []struct {
		on    bool
		chars string
	}{{o.Lowercase, Lowercase}, {o.Uppercase, Uppercase}, {o.Digits, Digits}, {o.Symbols, Symbols}} {
		if class.on {
			b.WriteString(class.chars)
		}
	}
	set := b.String()
	if o.ExcludeAmbiguous {
		set = strings.Map(func(r rune) rune {
			if strings.ContainsRune(Ambiguous, r) {
				return -1
			}
			return r
		}, set)
	}
	return []rune(set)
}

// Generate draws a password from the system random source.
func Generate(opts Options) (string, error) {
	if opts.Length <= 0 {
		return "", ErrNoLength
	}
	set := opts.charset()
	if len(set) == 0 {
		return "", ErrEmptyCharset
	}
	out := make([]rune, opts.Length)
	for i := range out {
		n, err := pick(len(set))
		if err != nil {
			return "", err
		}
		out[i] = set[n]
	}
	return string(out), nil
}

var words = []string{
	"apple", "beach", "cloud", "dance", "eagle", "flame", "grace", "house",
	"island", "jungle", "kite", "lemon", "mountain", "ocean", "piano", "quiet",
	"river", "sunset", "tiger", "umbrella", "valley", "whale", "xylophone", "yacht",
	"zebra", "anchor", "bridge", "castle", "dragon", "forest", "guitar", "harmony",
	"ivory", "jewel", "knight", "lighthouse", "melody", "nature", "orchid", "phoenix",
	"quartz", "rainbow", "serenity", "thunder", "unicorn", "violet", "wisdom", "crystal",
	"yonder",
}

// Passphrase joins count random words with sep.
func Passphrase(count int, sep string) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("word count: %w", ErrNoLength)
	}
	chosen := make([]string, count)
	for i := range chosen {
		n, err := pick(len(words))
		if err != nil {
			return "", err
		}
		chosen[i] = words[n]
	}
	return strings.Join(chosen, sep), nil
}

func pick(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random source: %w", err)
	}
	return int(v.Int64()), nil
}
