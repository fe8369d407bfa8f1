package matcher

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// KeywordSource supplies the current normalized keyword set in insertion
// order. Implemented by the repository.
type KeywordSource interface {
	NormalizedKeywords() ([]string, error)
}

// Matcher tests message text against an immutable snapshot of the keyword
// set. The snapshot is refreshed periodically so a long matching pass never
// races a concurrent keyword edit.
type Matcher struct {
	source   KeywordSource
	mu       sync.RWMutex
	snapshot []string
}

// New creates a matcher with an empty snapshot. Call Refresh before the
// first matching pass.
func New(source KeywordSource) *Matcher {
	return &Matcher{source: source}
}

// Refresh replaces the snapshot with the current keyword set.
func (m *Matcher) Refresh() error {
	keywords, err := m.source.NormalizedKeywords()
	if err != nil {
		return fmt.Errorf("failed to load keywords: %w", err)
	}

	m.mu.Lock()
	m.snapshot = keywords
	m.mu.Unlock()

	logrus.Debugf("Keyword snapshot refreshed: %d keywords", len(keywords))
	return nil
}

// Match returns the keywords contained in the given raw message text, in
// keyword insertion order. Matching is substring containment on normalized
// forms; empty text matches nothing.
func (m *Matcher) Match(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	m.mu.RLock()
	snapshot := m.snapshot
	m.mu.RUnlock()

	var matched []string
	for _, kw := range snapshot {
		if kw == "" {
			continue
		}
		if strings.Contains(normalized, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// Size returns the number of keywords in the current snapshot.
func (m *Matcher) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshot)
}
