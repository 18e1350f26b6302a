// Package knowledge holds the curated question→answer library and the fuzzy
// matcher that picks the best canned answer for a user's message.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/titanous/json5"
)

// ErrNotLoaded is returned by Best before the first successful load.
var ErrNotLoaded = errors.New("knowledge base not loaded")

// Match is the best candidate for a query.
type Match struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"` // 0..100
}

type entry struct {
	question string // as written in the file
	folded   string
	answer   string
}

// Base is a static, process-wide question→answer mapping.
// Reload swaps the whole mapping atomically; Best never sees a partial load.
type Base struct {
	path    string
	entries atomic.Pointer[[]entry]
}

// NewBase creates an empty base backed by path. Call Reload to load it.
func NewBase(path string) *Base {
	return &Base{path: path}
}

// Load creates a base and loads it once.
func Load(path string) (*Base, error) {
	b := NewBase(path)
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// FromMap builds an in-memory base (tests, tooling).
func FromMap(m map[string]string) *Base {
	b := &Base{}
	b.set(m)
	return b
}

// Path returns the backing file.
func (b *Base) Path() string { return b.path }

// Reload re-reads the backing file. On error the current mapping is kept.
func (b *Base) Reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("read knowledge base: %w", err)
	}
	var m map[string]string
	if err := json5.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse knowledge base %s: %w", b.path, err)
	}
	b.set(m)
	return nil
}

func (b *Base) set(m map[string]string) {
	entries := make([]entry, 0, len(m))
	for q, a := range m {
		entries = append(entries, entry{question: q, folded: Fold(q), answer: a})
	}
	// Deterministic order so equal scores always resolve to the same entry.
	sort.Slice(entries, func(i, j int) bool { return entries[i].question < entries[j].question })
	b.entries.Store(&entries)
}

// Len returns the number of entries.
func (b *Base) Len() int {
	if e := b.entries.Load(); e != nil {
		return len(*e)
	}
	return 0
}

// Best returns the highest-scoring entry for query. ok is false when the
// base is empty. Thresholding is left to the caller.
func (b *Base) Best(query string) (Match, bool, error) {
	ep := b.entries.Load()
	if ep == nil {
		return Match{}, false, ErrNotLoaded
	}
	entries := *ep
	if len(entries) == 0 {
		return Match{}, false, nil
	}

	folded := Fold(query)
	best := -1
	bestScore := -1.0
	for i := range entries {
		score := TokenSetRatio(folded, entries[i].folded)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return Match{
		Question: entries[best].question,
		Answer:   entries[best].answer,
		Score:    bestScore,
	}, true, nil
}
