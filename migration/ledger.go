// Package migration is the versioned-migration engine for dashboard
// content. A Ledger fixes the ordered list of known schema versions, a
// Registry binds one transform step to each version, and a Runner folds a
// document through every outstanding step until it reaches the latest
// version. Plugin configuration uses the integer-versioned
// VersionedMigrator over the {version, config} envelope instead.
package migration

import (
	"fmt"
)

// Ledger is the ordered list of known content schema versions. The order is
// fixed at deploy time: versions may only ever be appended, never removed
// or reordered once shipped.
type Ledger struct {
	versions []string
	index    map[string]int
}

// NewLedger constructs a ledger from versions in their deploy order.
// Duplicate versions are a programming error and panic at init.
func NewLedger(versions ...string) *Ledger {
	l := &Ledger{
		versions: append([]string(nil), versions...),
		index:    make(map[string]int, len(versions)),
	}
	for i, v := range versions {
		if _, ok := l.index[v]; ok {
			panic(fmt.Sprintf("duplicate version %q in ledger", v))
		}
		l.index[v] = i
	}
	return l
}

// Contains reports whether v is a known version.
func (l *Ledger) Contains(v string) bool {
	_, ok := l.index[v]
	return ok
}

// Latest returns the newest version, or the empty string for an empty
// ledger.
func (l *Ledger) Latest() string {
	if len(l.versions) == 0 {
		return ""
	}
	return l.versions[len(l.versions)-1]
}

// Next returns the version following current. An empty current stands for a
// document that predates versioning and yields the first ledger version.
// The second return is false when current is already the latest version.
// Calling Next with an unknown version is the caller's bug; the Runner
// rejects unknown versions before ever walking the ledger.
func (l *Ledger) Next(current string) (string, bool) {
	if current == "" {
		if len(l.versions) == 0 {
			return "", false
		}
		return l.versions[0], true
	}
	i, ok := l.index[current]
	if !ok || i+1 >= len(l.versions) {
		return "", false
	}
	return l.versions[i+1], true
}

// Versions returns a copy of the ledger in order.
func (l *Ledger) Versions() []string {
	return append([]string(nil), l.versions...)
}
