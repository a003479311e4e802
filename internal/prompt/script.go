package prompt

import (
	"context"
	"fmt"
	"sync"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/util"
)

// Script is a prompter fed with pre-recorded answers, used by tests and by
// batch runs that want a fixed policy (e.g. always skip).
type Script struct {
	mu        sync.Mutex
	responses []*decide.PromptResponse
	// Fallback answers once the queue is drained; nil means error out
	Fallback *decide.PromptResponse
}

// NewScript creates a scripted prompter with queued responses
func NewScript(responses ...*decide.PromptResponse) *Script {
	return &Script{responses: responses}
}

// AlwaysSkip returns a prompter that leaves every conflict unresolved
func AlwaysSkip() *Script {
	return &Script{Fallback: &decide.PromptResponse{Choice: decide.ChoiceNone}}
}

// ResolveConflict pops the next queued response
func (s *Script) ResolveConflict(_ context.Context, req *decide.PromptRequest) (*decide.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.responses) == 0 {
		if s.Fallback != nil {
			return s.Fallback, nil
		}
		return nil, fmt.Errorf("no scripted answer left for %s: %w", req.NewPath, util.ErrAmbiguityUnresolved)
	}

	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}
