// Package recognize turns one audio clip into a normalized identification
// result using a pluggable backend.
package recognize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/himanishpuri/muzak/internal/audio"
)

// Kind classifies a recognition attempt.
type Kind int

const (
	// NoResult: the backend failed, timed out or answered with garbage.
	NoResult Kind = iota
	// NoMatch: the backend answered and found nothing.
	NoMatch
	// Match: the backend identified a song.
	Match
)

func (k Kind) String() string {
	switch k {
	case NoResult:
		return "no-result"
	case NoMatch:
		return "no-match"
	case Match:
		return "match"
	default:
		return "unknown"
	}
}

// Result is the outcome of Adapter.Recognize. Err is set for NoResult.
type Result struct {
	Kind       Kind
	Title      string
	Artist     string
	Confidence float64
	Err        error
}

// Identification is what a backend reports for a match.
type Identification struct {
	Title      string
	Artist     string
	Confidence float64
}

// Backend identifies a clip. It returns nil, nil when it found no match.
type Backend interface {
	Identify(ctx context.Context, clip *audio.Clip) (*Identification, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, clip *audio.Clip) (*Identification, error)

func (f BackendFunc) Identify(ctx context.Context, clip *audio.Clip) (*Identification, error) {
	return f(ctx, clip)
}

var errIncomplete = errors.New("identification without title or artist")

// Adapter makes exactly one bounded call per clip. It never retries.
type Adapter struct {
	backend Backend
	timeout time.Duration
}

// NewAdapter wraps backend with a per-call timeout. A zero timeout means
// the caller's context is the only bound.
func NewAdapter(backend Backend, timeout time.Duration) *Adapter {
	return &Adapter{backend: backend, timeout: timeout}
}

// Recognize submits clip once and normalizes the answer.
func (a *Adapter) Recognize(ctx context.Context, clip *audio.Clip) Result {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	id, err := a.backend.Identify(ctx, clip)
	switch {
	case err != nil:
		return Result{Kind: NoResult, Err: err}
	case id == nil:
		return Result{Kind: NoMatch}
	}

	title := StripQualifier(id.Title)
	artist := strings.TrimSpace(id.Artist)
	if title == "" || artist == "" {
		return Result{Kind: NoResult, Err: errIncomplete}
	}
	return Result{Kind: Match, Title: title, Artist: artist, Confidence: id.Confidence}
}

// StripQualifier removes trailing parenthesized or bracketed qualifiers,
// so "Song (Remastered) [Live]" becomes "Song". A title made only of a
// qualifier is kept as is.
func StripQualifier(title string) string {
	t := strings.TrimSpace(title)
	for {
		var open byte
		switch {
		case strings.HasSuffix(t, ")"):
			open = '('
		case strings.HasSuffix(t, "]"):
			open = '['
		default:
			return t
		}
		i := strings.LastIndexByte(t, open)
		if i <= 0 {
			return t
		}
		stripped := strings.TrimSpace(t[:i])
		if stripped == "" {
			return t
		}
		t = stripped
	}
}
