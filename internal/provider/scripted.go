package provider

import (
	"context"
	"sync"
)

// Scripted replays a fixed list of responses in order and records every
// request it receives. Once the script is exhausted it returns an empty
// TextResponse. It backs the "scripted" provider used for offline runs and
// tests.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	errs      map[int]error
	requests  []Request
}

// NewScripted builds a backend that answers with TextResponses of texts.
func NewScripted(texts ...string) *Scripted {
	rs := make([]Response, len(texts))
	for i, t := range texts {
		rs[i] = &TextResponse{Text: t}
	}
	return &Scripted{responses: rs}
}

// NewScriptedResponses builds a backend from arbitrary response shapes.
func NewScriptedResponses(rs ...Response) *Scripted {
	return &Scripted{responses: append([]Response(nil), rs...)}
}

// FailAt makes call n (0-indexed) return err instead of a response.
func (s *Scripted) FailAt(n int, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[int]error)
	}
	s.errs[n] = err
	return s
}

func (s *Scripted) Name() string         { return "scripted" }
func (s *Scripted) DefaultModel() string { return "scripted" }

func (s *Scripted) Generate(ctx context.Context, req *Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.requests)
	cp := *req
	cp.Stop = append([]string(nil), req.Stop...)
	s.requests = append(s.requests, cp)

	if err, ok := s.errs[n]; ok {
		return nil, err
	}
	if n < len(s.responses) {
		return s.responses[n], nil
	}
	return &TextResponse{}, nil
}

func (s *Scripted) Ping(context.Context) error { return nil }

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls returns how many times Generate was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
