package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/match"
)

func TestParseAnswer(t *testing.T) {
	candidates := []match.Candidate{
		{TrackID: 1, Path: "/music/a.flac", Albums: []string{"rel-1"}},
		{TrackID: 2, Path: "/music/b.flac", Albums: []string{"rel-2"}},
	}

	tests := []struct {
		name      string
		line      string
		choice    decide.Choice
		candidate int
		releaseID string
	}{
		{"new wins", "n", decide.ChoiceNew, 0, "rel-1"},
		{"new wins long form", "new", decide.ChoiceNew, 0, "rel-1"},
		{"existing wins", "e", decide.ChoiceExisting, 0, "rel-1"},
		{"distinct", "d", decide.ChoiceDistinct, 0, "rel-1"},
		{"second candidate", "e 2", decide.ChoiceExisting, 1, "rel-2"},
		{"new wins over second", "n 2", decide.ChoiceNew, 1, "rel-2"},
		{"skip", "s", decide.ChoiceNone, 0, ""},
		{"empty input", "", decide.ChoiceNone, 0, ""},
		{"garbage", "wat", decide.ChoiceNone, 0, ""},
		{"out of range index", "e 9", decide.ChoiceNone, 0, ""},
		{"uppercase", "N", decide.ChoiceNew, 0, "rel-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseAnswer(tt.line, candidates)
			if resp.Choice != tt.choice {
				t.Errorf("Expected choice %v, got %v", tt.choice, resp.Choice)
			}
			if resp.Candidate != tt.candidate {
				t.Errorf("Expected candidate %d, got %d", tt.candidate, resp.Candidate)
			}
			if resp.ReleaseID != tt.releaseID {
				t.Errorf("Expected release %q, got %q", tt.releaseID, resp.ReleaseID)
			}
		})
	}
}

func TestConsoleSelectionReachesVerdict(t *testing.T) {
	// "n 2" through the full machine: the verdict must land on the second
	// candidate, and sticky must follow the same selection
	c := &Console{In: strings.NewReader("n 2\n"), Out: &bytes.Buffer{}}
	m := decide.NewMachine(decide.Thresholds{Ask: 0.95, Auto: 0.98}, c)

	candidates := []match.Candidate{
		{TrackID: 1, Path: "/music/top.flac", Similarity: 0.99, Quality: 300, Albums: []string{"rel-1"}},
		{TrackID: 2, Path: "/music/second.flac", Similarity: 0.985, Quality: 400, Albums: []string{"rel-2"}},
	}

	d, err := m.Decide(context.Background(), "/incoming/new.flac", "flac", 500, candidates)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if d.Verdict != decide.AutoWin {
		t.Fatalf("expected AutoWin, got %v", d.Verdict)
	}
	if d.Match == nil || d.Match.TrackID != 2 {
		t.Fatalf("verdict should apply to the selected candidate, got %+v", d.Match)
	}
	if m.Sticky.ReleaseID() != "rel-2" {
		t.Errorf("expected sticky rel-2, got %q", m.Sticky.ReleaseID())
	}
}

func TestConsoleResolveConflict(t *testing.T) {
	var out bytes.Buffer
	c := &Console{
		In:  strings.NewReader("e\n"),
		Out: &out,
	}

	req := &decide.PromptRequest{
		NewPath:  "/incoming/new.flac",
		NewScore: 500,
		Candidates: []match.Candidate{
			{TrackID: 1, Path: "/music/a.flac", Similarity: 0.96, Quality: 300},
		},
	}

	resp, err := c.ResolveConflict(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}
	if resp.Choice != decide.ChoiceExisting {
		t.Errorf("Expected ChoiceExisting, got %v", resp.Choice)
	}

	display := out.String()
	if !strings.Contains(display, "/incoming/new.flac") {
		t.Error("Prompt should show the new file path")
	}
	if !strings.Contains(display, "/music/a.flac") {
		t.Error("Prompt should show the candidate path")
	}
}

func TestConsoleEOFSkips(t *testing.T) {
	c := &Console{In: strings.NewReader(""), Out: &bytes.Buffer{}}

	resp, err := c.ResolveConflict(context.Background(), &decide.PromptRequest{})
	if err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}
	if resp.Choice != decide.ChoiceNone {
		t.Errorf("EOF should leave the conflict unresolved, got %v", resp.Choice)
	}
}

func TestScriptQueue(t *testing.T) {
	s := NewScript(
		&decide.PromptResponse{Choice: decide.ChoiceNew},
		&decide.PromptResponse{Choice: decide.ChoiceDistinct, ReleaseID: "rel-1"},
	)

	ctx := context.Background()
	req := &decide.PromptRequest{NewPath: "/a"}

	first, err := s.ResolveConflict(ctx, req)
	if err != nil || first.Choice != decide.ChoiceNew {
		t.Fatalf("Unexpected first answer: %v, %v", first, err)
	}

	second, err := s.ResolveConflict(ctx, req)
	if err != nil || second.Choice != decide.ChoiceDistinct || second.ReleaseID != "rel-1" {
		t.Fatalf("Unexpected second answer: %v, %v", second, err)
	}

	if _, err := s.ResolveConflict(ctx, req); err == nil {
		t.Error("Drained script without fallback should error")
	}
}

func TestScriptAlwaysSkip(t *testing.T) {
	s := AlwaysSkip()

	for i := 0; i < 3; i++ {
		resp, err := s.ResolveConflict(context.Background(), &decide.PromptRequest{})
		if err != nil {
			t.Fatalf("AlwaysSkip errored: %v", err)
		}
		if resp.Choice != decide.ChoiceNone {
			t.Errorf("AlwaysSkip returned %v", resp.Choice)
		}
	}
}
