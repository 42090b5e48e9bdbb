// Package subst holds the name → replacement table consulted for :name:
// tokens during translation.
package subst

import (
	"maps"
	"regexp"
	"sync"

	"github.com/Konsultn-Engineering/esql/sqlerr"
)

// Fallback resolves a name the table has no entry for.
type Fallback func(name string) (string, error)

// MissingFallback is the default fallback; it always fails.
func MissingFallback(name string) (string, error) {
	return "", sqlerr.New(sqlerr.CodeMissingSubstitution, "missing substitution for %q", name)
}

// Table is safe for concurrent use. Reads take a shared lock, so a lookup
// never observes a half-applied Add or Remove.
type Table struct {
	mu       sync.RWMutex
	entries  map[string]string
	fallback Fallback
}

var defaultTable = New()

// Default returns the process-wide table used by translators that are not
// given their own.
func Default() *Table {
	return defaultTable
}

func New() *Table {
	return &Table{
		entries:  make(map[string]string),
		fallback: MissingFallback,
	}
}

// Add sets or overwrites the replacement for name.
func (t *Table) Add(name, value string) {
	t.mu.Lock()
	t.entries[name] = value
	t.mu.Unlock()
}

// AddAll merges entries into the table.
func (t *Table) AddAll(entries map[string]string) {
	t.mu.Lock()
	maps.Copy(t.entries, entries)
	t.mu.Unlock()
}

func (t *Table) Remove(name string) {
	t.mu.Lock()
	delete(t.entries, name)
	t.mu.Unlock()
}

// RemoveAll clears every entry. The fallback is kept.
func (t *Table) RemoveAll() {
	t.mu.Lock()
	clear(t.entries)
	t.mu.Unlock()
}

// SetFallback replaces the miss handler. nil restores MissingFallback.
func (t *Table) SetFallback(fn Fallback) {
	if fn == nil {
		fn = MissingFallback
	}
	t.mu.Lock()
	t.fallback = fn
	t.mu.Unlock()
}

// Lookup returns the replacement for name, calling the fallback on a miss.
// The fallback runs outside the lock so it may itself call Add.
func (t *Table) Lookup(name string) (string, error) {
	t.mu.RLock()
	v, ok := t.entries[name]
	fn := t.fallback
	t.mu.RUnlock()

	if ok {
		return v, nil
	}
	return fn(name)
}

// Snapshot copies the current entries.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.entries)
}

var tokenPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*):`)

// Replace resolves every :name: token in s. The first failing lookup aborts
// the replacement.
func (t *Table) Replace(s string) (string, error) {
	if len(s) < 3 {
		return s, nil
	}
	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		v, err := t.Lookup(tok[1 : len(tok)-1])
		if err != nil {
			firstErr = err
			return tok
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
