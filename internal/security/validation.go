package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	DefaultMaxBodySize  = 64 << 10
	DefaultMaxJSONDepth = 16
)

var (
	ErrBodyTooLarge = errors.New("request body exceeds maximum size")
	ErrJSONTooDeep  = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// BodyLimits bounds a JSON request body. Zero fields take the defaults.
type BodyLimits struct {
	MaxBytes int
	MaxDepth int
}

func (l BodyLimits) maxBytes() int {
	if l.MaxBytes <= 0 {
		return DefaultMaxBodySize
	}
	return l.MaxBytes
}

func (l BodyLimits) maxDepth() int {
	if l.MaxDepth <= 0 {
		return DefaultMaxJSONDepth
	}
	return l.MaxDepth
}

// Read consumes r up to one byte past the size limit, so an oversized
// body is detected without buffering all of it.
func (l BodyLimits) Read(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(l.maxBytes())+1))
	if err != nil {
		return nil, err
	}
	if len(data) > l.maxBytes() {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrBodyTooLarge, l.maxBytes())
	}
	return data, nil
}

// Check validates the size and nesting depth of data. An empty body passes.
func (l BodyLimits) Check(data []byte) error {
	if len(data) > l.maxBytes() {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrBodyTooLarge, len(data), l.maxBytes())
	}
	return checkDepth(data, l.maxDepth())
}

// ValidateBodySize rejects data longer than limit, or DefaultMaxBodySize
// when limit is not positive.
func ValidateBodySize(data []byte, limit int) error {
	l := BodyLimits{MaxBytes: limit}
	if len(data) > l.maxBytes() {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrBodyTooLarge, len(data), l.maxBytes())
	}
	return nil
}

// ValidateBody is BodyLimits.Check with explicit limits.
func ValidateBody(data []byte, sizeLimit, depthLimit int) error {
	return BodyLimits{MaxBytes: sizeLimit, MaxDepth: depthLimit}.Check(data)
}

// checkDepth walks the token stream; it also rejects malformed JSON.
func checkDepth(data []byte, limit int) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	for depth := 0; ; {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		if delim == '{' || delim == '[' {
			if depth++; depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
			continue
		}
		depth--
	}
}
