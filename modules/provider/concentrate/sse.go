package concentrate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/cinechat/internal/provider"
)

// sseMaxLineSize is the maximum SSE line size (512 KiB). Large tool call
// arguments can exceed the default 64 KiB bufio.Scanner limit.
const sseMaxLineSize = 512 * 1024

// Event types that end a stream.
const (
	eventCompleted  = "response.completed"
	eventFailed     = "response.failed"
	eventCanceled   = "response.canceled"
	eventIncomplete = "response.incomplete"
	eventError      = "error"
)

// sseEvent is the subset of /responses stream events the adapter reads.
// Delta and Text stay raw because some vendors send non-string values.
type sseEvent struct {
	Type     string           `json:"type"`
	Delta    json.RawMessage  `json:"delta"`
	Text     json.RawMessage  `json:"text"`
	Part     *apiContentBlock `json:"part"`
	Item     *apiOutputItem   `json:"item"`
	Response *apiResponse     `json:"response"`
	Message  string           `json:"message"`
}

// readEvents splits r into SSE blocks separated by blank lines. The data
// lines of a block are joined with "\n" and handed to fn; a block without
// data lines is skipped. A trailing block with no terminating blank line
// is still delivered. Reading stops early when fn returns false.
func readEvents(r io.Reader, fn func(data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), sseMaxLineSize)

	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return fn([]byte(payload))
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if !flush() {
				return nil
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimLeft(rest, " \t"))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	flush()
	return nil
}

// streamState tracks what a stream has produced so far.
type streamState struct {
	sawText  bool
	sawDelta bool
	calls    []provider.ToolCall
	finish   provider.FinishReason
	usage    *provider.TokenUsage
	failure  string
}

// handle applies one event. emit forwards a text chunk and reports whether
// the consumer is still there. It returns false when reading should stop.
func (s *streamState) handle(ev sseEvent, emit func(provider.StreamChunk) bool) bool {
	switch ev.Type {
	case "response.output_text.delta":
		if d, ok := rawString(ev.Delta); ok && d != "" {
			s.sawText = true
			s.sawDelta = true
			return emit(provider.StreamChunk{Content: d})
		}
	case "response.output_text.done":
		// Some vendors only send the text once, at the end.
		if t, ok := rawString(ev.Text); ok && t != "" && !s.sawDelta {
			s.sawText = true
			return emit(provider.StreamChunk{Content: t})
		}
	case "response.content_part.added":
		if ev.Part != nil && ev.Part.Text != "" {
			s.sawText = true
			return emit(provider.StreamChunk{Content: ev.Part.Text})
		}
	case "response.output_item.done":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			s.calls = append(s.calls, toolCallFromItem(*ev.Item))
		}
	case eventCompleted, eventFailed, eventCanceled, eventIncomplete, eventError:
		s.finish = provider.FinishReasonStop
		if ev.Type == eventIncomplete {
			s.finish = provider.FinishReasonLength
		}
		if ev.Response != nil {
			if len(s.calls) == 0 {
				s.calls = extractToolCalls(ev.Response.Output)
			}
			if ev.Response.Usage != nil {
				u := convertUsage(*ev.Response.Usage)
				s.usage = &u
			}
			if ev.Response.Error != nil {
				s.failure = ev.Response.Error.Message
			}
		}
		if ev.Type == eventError && ev.Message != "" {
			s.failure = ev.Message
		}
		return false
	}
	return true
}

// produced reports whether the stream yielded anything usable.
func (s *streamState) produced() bool {
	return s.sawText || len(s.calls) > 0
}

// final is the closing chunk carrying tool calls, finish reason and usage.
func (s *streamState) final() provider.StreamChunk {
	finish := s.finish
	if len(s.calls) > 0 {
		finish = provider.FinishReasonToolUse
	}
	if finish == "" {
		finish = provider.FinishReasonStop
	}
	return provider.StreamChunk{ToolCalls: s.calls, FinishReason: finish, Usage: s.usage}
}

// relay parses the event stream in body and forwards chunks to ch. When
// the stream produced neither text nor tool calls, it issues one
// non-stream request with the same payload and forwards that instead.
func (c *Concentrate) relay(ctx context.Context, body io.ReadCloser, apiReq apiRequest, ch chan<- provider.StreamChunk) {
	emit := func(chunk provider.StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	st := &streamState{}
	err := readEvents(body, func(data []byte) bool {
		var ev sseEvent
		if jsonErr := json.Unmarshal(data, &ev); jsonErr != nil {
			return true
		}
		return st.handle(ev, emit)
	})
	_ = body.Close()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		emit(provider.StreamChunk{Err: fmt.Errorf("concentrate: reading stream: %w: %w", provider.ErrProviderDown, err)})
		return
	}
	if st.produced() {
		emit(st.final())
		return
	}

	resp, err := c.complete(ctx, apiReq)
	if err != nil {
		if st.failure != "" {
			err = fmt.Errorf("%w (stream failed: %s)", err, st.failure)
		}
		emit(provider.StreamChunk{Err: err})
		return
	}
	usage := resp.Usage
	emit(provider.StreamChunk{
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		FinishReason: resp.FinishReason,
		Usage:        &usage,
	})
}
