package password

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// Strength buckets an Analysis score.
type Strength int

const (
	VeryWeak Strength = iota
	Weak
	Fair
	Good
	Strong
	VeryStrong
)

func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "very weak"
	case Weak:
		return "weak"
	case Fair:
		return "fair"
	case Good:
		return "good"
	case Strong:
		return "strong"
	default:
		return "very strong"
	}
}

// Analysis is the result of Analyze.
type Analysis struct {
	Strength  Strength
	Score     int
	Entropy   float64
	Diversity int
	Common    bool
	Feedback  []string
}

// Analyze scores a password on length, character diversity and obvious
// patterns, out of 100.
func Analyze(pw string) Analysis {
	return analyze([]rune(pw))
}

// AnalyzeBytes is Analyze for a secret held in a byte slice. It makes no
// string copy of pw and clears its own scratch space.
func AnalyzeBytes(pw []byte) Analysis {
	runes := make([]rune, 0, utf8.RuneCount(pw))
	for len(pw) > 0 {
		r, n := utf8.DecodeRune(pw)
		runes = append(runes, r)
		pw = pw[n:]
	}
	defer clear(runes)
	return analyze(runes)
}

func analyze(pw []rune) Analysis {
	var a Analysis
	a.Score += a.scoreLength(pw)
	a.Diversity = a.scoreDiversity(pw)
	a.Score += a.Diversity
	a.Score += a.scorePatterns(pw)
	if isCommon(pw) {
		a.Common = true
		a.Score = max(a.Score-30, 0)
		a.Feedback = append(a.Feedback, "This appears to be a common password")
	}
	a.Entropy = entropy(pw)

	switch {
	case a.Score <= 20:
		a.Strength = VeryWeak
	case a.Score <= 40:
		a.Strength = Weak
	case a.Score <= 60:
		a.Strength = Fair
	case a.Score <= 80:
		a.Strength = Good
	case a.Score <= 95:
		a.Strength = Strong
	default:
		a.Strength = VeryStrong
	}
	return a
}

func (a *Analysis) scoreLength(pw []rune) int {
	switch n := len(pw); {
	case n <= 4:
		a.Feedback = append(a.Feedback, "Password is too short, use at least 8 characters")
		return 5
	case n <= 7:
		a.Feedback = append(a.Feedback, "Password is short, consider at least 12 characters")
		return 15
	case n <= 11:
		return 25
	case n <= 15:
		return 30
	case n <= 20:
		return 35
	default:
		return 40
	}
}

type classes struct{ lower, upper, digit, symbol bool }

func classify(pw []rune) classes {
	var c classes
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.symbol = true
		}
	}
	return c
}

func (a *Analysis) scoreDiversity(pw []rune) int {
	c := classify(pw)
	score := 0
	for _, class := range []struct {
		has    bool
		points int
		hint   string
	}{
		{c.lower, 10, "Add lowercase letters"},
		{c.upper, 10, "Add uppercase letters"},
		{c.digit, 10, "Add numbers"},
		{c.symbol, 15, "Add symbols (!@#$%^&*)"},
	} {
		if class.has {
			score += class.points
		} else {
			a.Feedback = append(a.Feedback, class.hint)
		}
	}
	return score
}

func (a *Analysis) scorePatterns(runes []rune) int {
	score := 15

	counts := map[rune]int{}
	most := 0
	for _, r := range runes {
		counts[r]++
		most = max(most, counts[r])
	}
	if most > len(runes)/3 {
		score -= 10
		a.Feedback = append(a.Feedback, "Avoid repeating the same character too often")
	}

	for i := 2; i < len(runes); i++ {
		if runes[i-1] == runes[i-2]+1 && runes[i] == runes[i-1]+1 {
			score -= 5
			a.Feedback = append(a.Feedback, "Avoid sequential characters (abc, 123)")
			break
		}
	}
	return score
}

var common = []string{
	"password", "123456", "123456789", "12345678", "12345", "1234567", "123",
	"password123", "admin", "qwerty", "abc123", "password1", "welcome",
	"monkey", "dragon", "letmein", "trustno1", "sunshine", "master", "hello",
	"freedom", "whatever", "qazwsx", "123321", "654321",
}

func isCommon(pw []rune) bool {
	for _, w := range common {
		if len(w) != len(pw) {
			continue
		}
		match := true
		for i := range pw {
			if unicode.ToLower(pw[i]) != rune(w[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// entropy estimates bits from the size of the classes in use.
func entropy(pw []rune) float64 {
	if len(pw) == 0 {
		return 0
	}
	c := classify(pw)
	size := 0
	if c.lower {
		size += 26
	}
	if c.upper {
		size += 26
	}
	if c.digit {
		size += 10
	}
	if c.symbol {
		size += 32
	}
	return float64(len(pw)) * math.Log2(float64(size))
}
