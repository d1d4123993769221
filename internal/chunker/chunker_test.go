package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int) []string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i+1)
	}
	return w
}

func TestSplit_SingleChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"one word", "hello"},
		{"keeps original spacing", "  hello,\n\tworld  "},
		{"exactly size", strings.Join(words(200), " ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, 200, 20)
			if len(got) != 1 {
				t.Fatalf("Split returned %d chunks, want 1", len(got))
			}
			if got[0] != tt.text {
				t.Fatalf("Split()[0] = %q, want %q", got[0], tt.text)
			}
		})
	}
}

func TestSplit_220Words(t *testing.T) {
	w := words(220)
	got := Split(strings.Join(w, " "), 200, 20)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if want := strings.Join(w[:200], " "); got[0] != want {
		t.Fatalf("first chunk = %q..., want words 1-200", got[0][:20])
	}
	if want := strings.Join(w[180:], " "); got[1] != want {
		t.Fatalf("second chunk = %q, want words 181-220", got[1])
	}
	if n := len(strings.Fields(got[1])); n != 40 {
		t.Fatalf("second chunk has %d words, want 40", n)
	}
}

func TestSplit_Properties(t *testing.T) {
	cases := []struct{ n, size, overlap int }{
		{201, 200, 20},
		{1000, 200, 20},
		{17, 5, 0},
		{17, 5, 4},
		{10, 3, 1},
		{361, 200, 20},
		{380, 200, 20},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("n=%d/size=%d/overlap=%d", c.n, c.size, c.overlap), func(t *testing.T) {
			w := words(c.n)
			chunks := Split(strings.Join(w, " "), c.size, c.overlap)
			if len(chunks) < 2 {
				t.Fatalf("got %d chunks, want at least 2", len(chunks))
			}

			step := c.size - c.overlap
			var rebuilt []string
			for i, ch := range chunks {
				tokens := strings.Fields(ch)
				if len(tokens) > c.size {
					t.Fatalf("chunk %d has %d words, more than %d", i, len(tokens), c.size)
				}
				if i < len(chunks)-1 && len(tokens) != c.size {
					t.Fatalf("non-final chunk %d has %d words, want %d", i, len(tokens), c.size)
				}
				if i == 0 {
					rebuilt = append(rebuilt, tokens...)
				} else {
					rebuilt = append(rebuilt, tokens[c.overlap:]...)
				}
				if tokens[0] != w[i*step] {
					t.Fatalf("chunk %d starts with %s, want %s", i, tokens[0], w[i*step])
				}
			}
			if strings.Join(rebuilt, " ") != strings.Join(w, " ") {
				t.Fatalf("chunks do not reconstruct the token sequence")
			}

			for i := 0; i+1 < len(chunks); i++ {
				cur := strings.Fields(chunks[i])
				next := strings.Fields(chunks[i+1])
				tail := strings.Join(cur[len(cur)-c.overlap:], " ")
				head := strings.Join(next[:min(c.overlap, len(next))], " ")
				if tail != head {
					t.Fatalf("chunks %d and %d overlap %q vs %q", i, i+1, tail, head)
				}
			}

			last := strings.Fields(chunks[len(chunks)-1])
			if last[len(last)-1] != w[len(w)-1] {
				t.Fatalf("last chunk ends with %s, want %s", last[len(last)-1], w[len(w)-1])
			}
		})
	}
}

func TestSplit_NormalizesWhitespace(t *testing.T) {
	got := Split("a\tb\n\nc   d e", 3, 1)
	want := []string{"a b c", "c d e"}
	if len(got) != len(want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Split[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewPolicy(t *testing.T) {
	if _, err := NewPolicy(200, 20); err != nil {
		t.Fatalf("NewPolicy(200, 20): %v", err)
	}
	for _, c := range [][2]int{{0, 0}, {-1, 0}, {10, 10}, {10, -1}, {10, 11}} {
		if _, err := NewPolicy(c[0], c[1]); err == nil {
			t.Fatalf("NewPolicy(%d, %d) succeeded, want error", c[0], c[1])
		}
	}
	if DefaultPolicy.Size != 200 || DefaultPolicy.Overlap != 20 {
		t.Fatalf("DefaultPolicy = %+v, want {200 20}", DefaultPolicy)
	}
}
