// Package device picks which capture source the monitor records from.
package device

import "slices"

// Source is a capture input as seen by the monitor. Rank is the position in
// the preferred list, or -1 when the source was picked as a fallback.
type Source struct {
	Name string
	Rank int
}

// Resolve returns the next source to use after the preferred entry at
// startAfter failed. Preferred entries after startAfter are tried first,
// then the list wraps up to startAfter. When no other preferred entry is
// available, any available source other than the failing one is used, and
// as a last resort the failing source itself. ok is false only when
// available is empty. Pass startAfter -1 for the initial pick.
func Resolve(preferred, available []string, startAfter int) (Source, bool) {
	failing := ""
	if startAfter >= 0 && startAfter < len(preferred) {
		failing = preferred[startAfter]
	}
	return resolve(preferred, available, startAfter, failing)
}

func resolve(preferred, available []string, startAfter int, failing string) (Source, bool) {
	if len(available) == 0 {
		return Source{}, false
	}

	if startAfter < -1 || startAfter >= len(preferred) {
		startAfter = -1
	}

	for i := startAfter + 1; i < len(preferred); i++ {
		if slices.Contains(available, preferred[i]) {
			return Source{Name: preferred[i], Rank: i}, true
		}
	}
	for i := 0; i < startAfter; i++ {
		if slices.Contains(available, preferred[i]) {
			return Source{Name: preferred[i], Rank: i}, true
		}
	}

	for _, name := range available {
		if name != failing {
			return Source{Name: name, Rank: slices.Index(preferred, name)}, true
		}
	}

	return Source{Name: failing, Rank: slices.Index(preferred, failing)}, true
}

// Registry tracks the preferred list and the source currently in use.
// It is not safe for concurrent use; the monitor loop owns it.
type Registry struct {
	preferred []string
	active    Source
	hasActive bool
}

// NewRegistry creates a registry with no active source.
func NewRegistry(preferred []string) *Registry {
	return &Registry{preferred: slices.Clone(preferred)}
}

// Preferred returns a copy of the preferred list.
func (r *Registry) Preferred() []string {
	return slices.Clone(r.preferred)
}

// Active returns the source in use, if any.
func (r *Registry) Active() (Source, bool) {
	return r.active, r.hasActive
}

// Index returns the preference rank of the active source, -1 if none or if
// the active source is a fallback.
func (r *Registry) Index() int {
	if !r.hasActive {
		return -1
	}
	return r.active.Rank
}

// Failover moves to the next usable source among available. The active
// source, if any, is treated as the failing one.
func (r *Registry) Failover(available []string) (Source, bool) {
	startAfter, failing := -1, ""
	if r.hasActive {
		startAfter, failing = r.active.Rank, r.active.Name
	}

	next, ok := resolve(r.preferred, available, startAfter, failing)
	r.active, r.hasActive = next, ok
	return next, ok
}

// Clear forgets the active source.
func (r *Registry) Clear() {
	r.active, r.hasActive = Source{}, false
}

// Rank returns the preference rank for name, -1 when not preferred.
func (r *Registry) Rank(name string) int {
	return slices.Index(r.preferred, name)
}
