package radar

import (
	"maps"
	"slices"
	"sync"
)

// Favorites is the set of pairs the user starred, keyed by canonical pair.
type Favorites struct {
	mu    sync.RWMutex
	pairs map[string]struct{}
}

func NewFavorites(pairs []string) *Favorites {
	f := &Favorites{pairs: make(map[string]struct{}, len(pairs))}
	for _, p := range pairs {
		f.pairs[NormalizePair(p)] = struct{}{}
	}
	return f
}

func (f *Favorites) IsFavorite(pair string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.pairs[NormalizePair(pair)]
	return ok
}

// Toggle flips membership and returns the new state.
func (f *Favorites) Toggle(pair string) bool {
	key := NormalizePair(pair)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pairs[key]; ok {
		delete(f.pairs, key)
		return false
	}
	f.pairs[key] = struct{}{}
	return true
}

// List returns the favorites sorted.
func (f *Favorites) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := slices.AppendSeq(make([]string, 0, len(f.pairs)), maps.Keys(f.pairs))
	slices.Sort(out)
	return out
}
