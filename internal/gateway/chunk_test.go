package gateway

import (
	"strings"
	"testing"
)

func TestWordChunker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		n      int
		deltas []string
		want   []string
	}{
		{"passthrough", 0, []string{"Fi", "ght Club", " is"}, []string{"Fi", "ght Club", " is"}},
		{"one_word", 1, []string{"Fight Club is"}, []string{"Fight ", "Club ", "is"}},
		{"split_across_deltas", 2, []string{"Th", "e Matr", "ix (1999) is", " great"}, []string{"The Matrix ", "(1999) is ", "great"}},
		{"short_reply", 5, []string{"Yes."}, []string{"Yes."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newWordChunker(tt.n)
			var got []string
			for _, d := range tt.deltas {
				got = append(got, c.push(d)...)
			}
			if rest := c.flush(); rest != "" {
				got = append(got, rest)
			}

			if strings.Join(got, "") != strings.Join(tt.deltas, "") {
				t.Fatalf("pieces %q do not rebuild %q", got, strings.Join(tt.deltas, ""))
			}
			if len(got) != len(tt.want) {
				t.Fatalf("pieces = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("piece %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
