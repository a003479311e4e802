// Package decide classifies a resolved match and issues a verdict: accept a
// winner automatically, ask the operator, or treat the file as a distinct
// song. All state it needs is passed in explicitly so independent scans can
// run with independent contexts.
package decide

import (
	"context"
	"fmt"

	"github.com/franz/music-dedup/internal/match"
)

// Verdict is the outcome for a candidate file
type Verdict int

const (
	// Unique means no known song matched; the file enters the library
	Unique Verdict = iota
	// AutoWin means the new file replaces the stored match
	AutoWin
	// AutoLose means the new file is the duplicate
	AutoLose
	// AmbiguousPrompt means the operator declined or was unavailable;
	// nothing is written and the file is retried on the next run
	AmbiguousPrompt
	// DistinctConfirmed means the operator declared "different song,
	// keep both"; both records stay non-duplicate permanently
	DistinctConfirmed
)

// String returns the verdict name for logs and reports
func (v Verdict) String() string {
	switch v {
	case Unique:
		return "unique"
	case AutoWin:
		return "auto_win"
	case AutoLose:
		return "auto_lose"
	case AmbiguousPrompt:
		return "ambiguous"
	case DistinctConfirmed:
		return "distinct"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Thresholds holds the similarity tiers. Ask must be below Auto: matches at
// or above Auto may resolve automatically, matches between the two always
// involve the operator. Quality ties go to the incoming file (new >= stored
// wins), which keeps the outcome deterministic.
type Thresholds struct {
	Ask  float64
	Auto float64
}

// DefaultThresholds returns the tuned tier boundaries
func DefaultThresholds() Thresholds {
	return Thresholds{Ask: 0.85, Auto: 0.98}
}

// Validate checks the ordering invariant
func (t Thresholds) Validate() error {
	if t.Ask <= 0 || t.Auto <= 0 || t.Ask >= t.Auto || t.Auto > 1.0 {
		return fmt.Errorf("invalid thresholds: need 0 < ask (%v) < auto (%v) <= 1", t.Ask, t.Auto)
	}
	return nil
}

// Sticky remembers the operator's most recent manual album choice for the
// lifetime of the process, so a run of tracks from a just-confirmed album
// does not re-prompt. Never persisted.
type Sticky struct {
	releaseID string
}

// Set records the last confirmed release
func (s *Sticky) Set(releaseID string) {
	s.releaseID = releaseID
}

// Clear forgets the sticky selection
func (s *Sticky) Clear() {
	s.releaseID = ""
}

// ReleaseID returns the sticky release, or "" when unset
func (s *Sticky) ReleaseID() string {
	return s.releaseID
}

// Albums returns the sticky release as a context set for the resolver
func (s *Sticky) Albums() map[string]bool {
	if s.releaseID == "" {
		return nil
	}
	return map[string]bool{s.releaseID: true}
}

// Choice is the operator's answer to an ambiguous match
type Choice int

const (
	// ChoiceNone means the operator declined or aborted
	ChoiceNone Choice = iota
	// ChoiceNew keeps the new file
	ChoiceNew
	// ChoiceExisting keeps the stored file
	ChoiceExisting
	// ChoiceDistinct keeps both as different songs
	ChoiceDistinct
)

// PromptRequest carries everything the operator needs to decide
type PromptRequest struct {
	NewPath    string
	NewScore   int64
	NewFormat  string
	Candidates []match.Candidate
}

// PromptResponse is the operator's decision. Candidate indexes into the
// request's candidate list and names the record the choice applies to;
// an optional album selection updates the sticky context.
type PromptResponse struct {
	Choice    Choice
	Candidate int
	ReleaseID string
}

// Prompter is the synchronous operator boundary. The console, a GUI, an
// RPC bridge, or a scripted test double can all stand behind it without
// the state machine changing.
type Prompter interface {
	ResolveConflict(ctx context.Context, req *PromptRequest) (*PromptResponse, error)
}

// Decision is the state machine's output
type Decision struct {
	Verdict Verdict
	// Match is the candidate the verdict applies to; nil for Unique and
	// for an unresolved AmbiguousPrompt
	Match *match.Candidate
}

// Machine applies the tiered decision rules
type Machine struct {
	Thresholds Thresholds
	Prompter   Prompter // nil means non-interactive: ambiguity stays unresolved
	Sticky     *Sticky
}

// NewMachine creates a decision machine with its own sticky context
func NewMachine(thresholds Thresholds, prompter Prompter) *Machine {
	return &Machine{
		Thresholds: thresholds,
		Prompter:   prompter,
		Sticky:     &Sticky{},
	}
}

// Decide classifies the ranked candidate list for a new file.
//
// Rules, in order:
//   - no candidate at or above Ask: Unique
//   - a sticky candidate at or above Ask: that candidate's quality outcome,
//     skipping the prompt
//   - exactly one candidate, at or above Auto: quality outcome
//   - everything else escalates to the operator, including several
//     candidates at or above Auto
func (m *Machine) Decide(ctx context.Context, newPath string, newFormat string, newScore int64, candidates []match.Candidate) (*Decision, error) {
	qualifying := make([]match.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= m.Thresholds.Ask {
			qualifying = append(qualifying, c)
		}
	}

	if len(qualifying) == 0 {
		return &Decision{Verdict: Unique}, nil
	}

	// Sticky short-circuit: the operator just confirmed this album, so a
	// candidate from it resolves without re-asking.
	if m.Sticky != nil && m.Sticky.ReleaseID() != "" {
		for i := range qualifying {
			if hasRelease(&qualifying[i], m.Sticky.ReleaseID()) {
				return m.qualityOutcome(newScore, &qualifying[i]), nil
			}
		}
	}

	if len(qualifying) == 1 && qualifying[0].Similarity >= m.Thresholds.Auto {
		return m.qualityOutcome(newScore, &qualifying[0]), nil
	}

	return m.prompt(ctx, newPath, newFormat, newScore, qualifying)
}

// qualityOutcome compares scores; the incoming file wins ties
func (m *Machine) qualityOutcome(newScore int64, cand *match.Candidate) *Decision {
	if newScore >= cand.Quality {
		return &Decision{Verdict: AutoWin, Match: cand}
	}
	return &Decision{Verdict: AutoLose, Match: cand}
}

// prompt hands the ambiguity to the operator and maps the answer back into
// a verdict. A nil prompter, an error, or a declined prompt all leave the
// ambiguity unresolved; the caller must not write any state for the file.
func (m *Machine) prompt(ctx context.Context, newPath, newFormat string, newScore int64, candidates []match.Candidate) (*Decision, error) {
	if m.Prompter == nil {
		return &Decision{Verdict: AmbiguousPrompt}, nil
	}

	resp, err := m.Prompter.ResolveConflict(ctx, &PromptRequest{
		NewPath:    newPath,
		NewScore:   newScore,
		NewFormat:  newFormat,
		Candidates: candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}
	if resp == nil || resp.Choice == ChoiceNone {
		return &Decision{Verdict: AmbiguousPrompt}, nil
	}

	// An answer naming a candidate outside the presented list cannot be
	// applied; leave the file unresolved rather than guess
	if resp.Candidate < 0 || resp.Candidate >= len(candidates) {
		return &Decision{Verdict: AmbiguousPrompt}, nil
	}
	chosen := &candidates[resp.Candidate]

	if m.Sticky != nil && resp.ReleaseID != "" {
		m.Sticky.Set(resp.ReleaseID)
	}

	switch resp.Choice {
	case ChoiceNew:
		return &Decision{Verdict: AutoWin, Match: chosen}, nil
	case ChoiceExisting:
		return &Decision{Verdict: AutoLose, Match: chosen}, nil
	case ChoiceDistinct:
		return &Decision{Verdict: DistinctConfirmed, Match: chosen}, nil
	default:
		return &Decision{Verdict: AmbiguousPrompt}, nil
	}
}

func hasRelease(c *match.Candidate, releaseID string) bool {
	for _, r := range c.Albums {
		if r == releaseID {
			return true
		}
	}
	return false
}
