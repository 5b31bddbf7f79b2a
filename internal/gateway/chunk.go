package gateway

import (
	"unicode"
	"unicode/utf8"
)

// wordChunker regroups streamed text into pieces of n words. The pieces
// concatenate to exactly the input. With n <= 0 it passes deltas through.
type wordChunker struct {
	n   int
	buf string
}

func newWordChunker(n int) *wordChunker {
	return &wordChunker{n: n}
}

// push adds delta and returns the pieces that are now complete.
func (c *wordChunker) push(delta string) []string {
	if c.n <= 0 {
		if delta == "" {
			return nil
		}
		return []string{delta}
	}
	c.buf += delta

	var out []string
	for {
		cut := c.cutAfterWords()
		if cut < 0 {
			return out
		}
		out = append(out, c.buf[:cut])
		c.buf = c.buf[cut:]
	}
}

// flush returns whatever is still buffered.
func (c *wordChunker) flush() string {
	rest := c.buf
	c.buf = ""
	return rest
}

// cutAfterWords returns the byte offset just past the whitespace that ends
// the n-th word of the buffer, or -1 when fewer than n words are complete.
func (c *wordChunker) cutAfterWords() int {
	words, inWord := 0, false
	for i, r := range c.buf {
		if !unicode.IsSpace(r) {
			inWord = true
			continue
		}
		if inWord {
			words++
			inWord = false
			if words == c.n {
				return i + utf8.RuneLen(r)
			}
		}
	}
	return -1
}
