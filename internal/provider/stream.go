package provider

import (
	"context"
	"strings"
	"sync"
)

// TextStream adapts a chunk channel into an object that can be consumed
// chunk by chunk with Next, or in one shot with Wait, or both: Wait after
// partial iteration drains what is left and returns the aggregate of every
// chunk the source produced. The source is read exactly once.
//
// Next and Wait are meant for a single consumer; Text and Done may be
// called from any goroutine.
type TextStream struct {
	src <-chan StreamChunk

	mu     sync.Mutex
	text   strings.Builder
	calls  []ToolCall
	finish FinishReason
	usage  TokenUsage
	err    error
	done   bool
}

// NewTextStream wraps src. The producer must close src when it is done.
func NewTextStream(src <-chan StreamChunk) *TextStream {
	return &TextStream{src: src}
}

// Next blocks until the next chunk is available. It returns false once the
// source is exhausted, a chunk carried an error, or ctx is done. The
// terminal error, if any, is available from Err.
func (s *TextStream) Next(ctx context.Context) (StreamChunk, bool) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return StreamChunk{}, false
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.fail(ctx.Err())
		return StreamChunk{}, false
	case chunk, ok := <-s.src:
		if !ok {
			s.mu.Lock()
			s.done = true
			s.mu.Unlock()
			return StreamChunk{}, false
		}
		if chunk.Err != nil {
			s.fail(chunk.Err)
			return StreamChunk{}, false
		}
		s.absorb(chunk)
		return chunk, true
	}
}

// Wait drains the remaining chunks and returns the aggregated response.
func (s *TextStream) Wait(ctx context.Context) (CompletionResponse, error) {
	for {
		if _, ok := s.Next(ctx); !ok {
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	return s.responseLocked(), nil
}

// Text returns the text accumulated so far.
func (s *TextStream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Err returns the error that terminated the stream, if any.
func (s *TextStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done reports whether the source has been exhausted.
func (s *TextStream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *TextStream) absorb(chunk StreamChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(chunk.Content)
	s.calls = append(s.calls, chunk.ToolCalls...)
	if chunk.FinishReason != "" {
		s.finish = chunk.FinishReason
	}
	if chunk.Usage != nil {
		s.usage = *chunk.Usage
	}
}

func (s *TextStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.done = true
}

func (s *TextStream) responseLocked() CompletionResponse {
	finish := s.finish
	if finish == "" {
		finish = FinishReasonStop
		if len(s.calls) > 0 {
			finish = FinishReasonToolUse
		}
	}
	return CompletionResponse{
		Content:      s.text.String(),
		ToolCalls:    s.calls,
		FinishReason: finish,
		Usage:        s.usage,
	}
}
