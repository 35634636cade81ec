package memory

import (
	"sort"
	"strings"

	"github.com/aretw0/lockbox/pkg/core"
)

// Match weights.
const (
	weightName       = 3.0
	weightTag        = 2.0
	weightFieldLabel = 1.2
	weightFieldValue = 1.0
	weightNotes      = 0.8

	bonusExactName  = 2.0
	bonusNamePrefix = 1.0
)

// Query selects credentials.
type Query struct {
	// Text is split on whitespace; every term must match somewhere.
	Text string
	// Tags restricts results to credentials carrying all of them.
	Tags []string
	// IncludeValues also matches field values that are not masked.
	IncludeValues bool
	// IncludeSensitive extends IncludeValues to masked values.
	IncludeSensitive bool
	// FavoritesOnly restricts results to favourites.
	FavoritesOnly bool
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Result is a credential with its relevance score.
type Result struct {
	Credential core.Credential
	Score      float64
}

// Search returns the matching credentials by descending score. Ties are
// broken by name, then identifier.
func (r *Repository) Search(q Query) []Result {
	terms := strings.Fields(strings.ToLower(q.Text))

	r.mu.RLock()
	results := make([]Result, 0)
	for _, c := range r.records {
		if q.FavoritesOnly && !c.Favorite {
			continue
		}
		if !hasAllTags(c, q.Tags) {
			continue
		}
		score, ok := scoreCredential(c, terms, q)
		if !ok {
			continue
		}
		results = append(results, Result{Credential: c.Clone(), Score: score})
	}
	r.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return lessByName(results[i].Credential, results[j].Credential)
	})
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}

func hasAllTags(c core.Credential, tags []string) bool {
	for _, t := range tags {
		if !c.HasTag(t) {
			return false
		}
	}
	return true
}

func scoreCredential(c core.Credential, terms []string, q Query) (float64, bool) {
	if len(terms) == 0 {
		return 0, true
	}
	name := strings.ToLower(c.Name)
	notes := strings.ToLower(c.Notes)

	var total float64
	for _, term := range terms {
		var s float64
		if strings.Contains(name, term) {
			s += weightName
			switch {
			case name == term:
				s += bonusExactName
			case strings.HasPrefix(name, term):
				s += bonusNamePrefix
			}
		}
		for _, tag := range c.Tags {
			if strings.Contains(strings.ToLower(tag), term) {
				s += weightTag
				break
			}
		}
		for _, f := range c.Fields {
			if strings.Contains(strings.ToLower(f.DisplayName()), term) {
				s += weightFieldLabel
			}
			if q.IncludeValues && (q.IncludeSensitive || !f.Masked()) &&
				strings.Contains(strings.ToLower(f.Value), term) {
				s += weightFieldValue
			}
		}
		if strings.Contains(notes, term) {
			s += weightNotes
		}
		if s == 0 {
			return 0, false
		}
		total += s
	}
	return total, true
}
