// Package prompt implements the operator boundary for ambiguous matches:
// a console prompter for interactive scans and a scripted one for tests
// and unattended runs.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/match"
	"github.com/franz/music-dedup/internal/util"
)

// Console asks the operator on the terminal. It reads one line per
// conflict; empty input or EOF leaves the conflict unresolved.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// NewConsole creates a prompter bound to stdin/stderr
func NewConsole() *Console {
	return &Console{In: os.Stdin, Out: os.Stderr}
}

// ResolveConflict presents the candidates and reads the operator's answer
func (c *Console) ResolveConflict(_ context.Context, req *decide.PromptRequest) (*decide.PromptResponse, error) {
	fmt.Fprintf(c.Out, "\nAmbiguous match for:\n  %s (%s, score %d)\n\n", req.NewPath, req.NewFormat, req.NewScore)
	fmt.Fprintf(c.Out, "Known tracks that may be the same song:\n")
	for i, cand := range req.Candidates {
		marker := ""
		if cand.Duplicate {
			marker = " [duplicate]"
		}
		fmt.Fprintf(c.Out, "  [%d] %s\n      similarity %.3f, score %d%s\n",
			i+1, cand.Path, cand.Similarity, cand.Quality, marker)
	}
	fmt.Fprintf(c.Out, "\nChoose: [n]ew wins, [e]xisting wins, [d]ifferent song, [s]kip: ")

	scanner := bufio.NewScanner(c.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read answer: %w", err)
		}
		// EOF, e.g. piped input ran out
		return &decide.PromptResponse{Choice: decide.ChoiceNone}, nil
	}

	resp := ParseAnswer(scanner.Text(), req.Candidates)
	if resp.Choice == decide.ChoiceNone {
		util.DebugLog("Operator skipped conflict for %s", req.NewPath)
	}
	return resp, nil
}

// ParseAnswer maps one input line to a response. A trailing number picks
// the candidate the answer refers to, e.g. "e 2"; without one the
// top-ranked candidate is assumed. The chosen candidate's first release
// becomes the sticky album context.
func ParseAnswer(line string, candidates []match.Candidate) *decide.PromptResponse {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return &decide.PromptResponse{Choice: decide.ChoiceNone}
	}

	var choice decide.Choice
	switch fields[0] {
	case "n", "new":
		choice = decide.ChoiceNew
	case "e", "existing":
		choice = decide.ChoiceExisting
	case "d", "different", "distinct":
		choice = decide.ChoiceDistinct
	default:
		return &decide.PromptResponse{Choice: decide.ChoiceNone}
	}

	idx := 0
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(candidates) {
			return &decide.PromptResponse{Choice: decide.ChoiceNone}
		}
		idx = n - 1
	}

	resp := &decide.PromptResponse{Choice: choice, Candidate: idx}
	if idx < len(candidates) && len(candidates[idx].Albums) > 0 {
		resp.ReleaseID = candidates[idx].Albums[0]
	}
	return resp
}
