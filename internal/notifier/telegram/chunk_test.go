package telegram

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSplitShortTextUntouched(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		text  string
		limit int
	}{
		{"under limit", "hello\nworld", 100},
		{"exact limit", "abcde", 5},
		{"no limit", strings.Repeat("x", 5000), 0},
		{"empty", "", 10},
	}
	for _, tc := range cases {
		got := Split(tc.text, tc.limit, '\n')
		if diff := cmp.Diff([]string{tc.text}, got); diff != "" {
			t.Fatalf("%s: (-want +got)\n%s", tc.name, diff)
		}
	}
}

func TestSplitReportWithRegularLines(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 16; i++ {
		b.WriteString(strings.Repeat("a", 299))
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("b", 200))
	text := b.String()
	if len(text) != 5000 {
		t.Fatalf("fixture length = %d", len(text))
	}

	chunks := Split(text, 2000, '\n')
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	wantLens := []int{1799, 1799, 1400}
	for i, c := range chunks {
		if len(c) != wantLens[i] {
			t.Fatalf("chunk %d length = %d, want %d", i, len(c), wantLens[i])
		}
		if !strings.HasSuffix(c, strings.Repeat("a", 299)) && i < 2 {
			t.Fatalf("chunk %d does not end at a line boundary", i)
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatal("joined chunks differ from input")
	}
}

func TestSplitBreaksOnSeparatorAtLimit(t *testing.T) {
	t.Parallel()

	got := Split("abcd\nefgh\nij", 4, '\n')
	want := []string{"abcd", "efgh", "ij"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got)\n%s", diff)
	}
}

func TestSplitHardCutsUnbrokenRun(t *testing.T) {
	t.Parallel()

	got := Split(strings.Repeat("x", 25), 10, '\n')
	want := []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got)\n%s", diff)
	}
}

func TestSplitCountsRunes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 8) + "\n" + strings.Repeat("ü", 8)
	for _, c := range Split(text, 10, '\n') {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Fatalf("chunk has %d runes", n)
		}
		if !utf8.ValidString(c) {
			t.Fatalf("chunk split inside a rune: %q", c)
		}
	}
}

func TestSplitBoundAndCompleteness(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abc de\n")
	for iter := 0; iter < 300; iter++ {
		n := rng.Intn(400)
		rs := make([]rune, n)
		for i := range rs {
			rs[i] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(rs)
		limit := 1 + rng.Intn(60)

		chunks := Split(text, limit, '\n')
		if len([]rune(text)) <= limit {
			continue
		}
		for _, c := range chunks {
			if utf8.RuneCountInString(c) > limit {
				t.Fatalf("iter %d: chunk %q exceeds %d", iter, c, limit)
			}
			if c == "" {
				t.Fatalf("iter %d: empty chunk", iter)
			}
		}
		if squash(strings.Join(chunks, "\n")) != squash(text) {
			t.Fatalf("iter %d: content lost\ntext=%q\nchunks=%q", iter, text, chunks)
		}
	}
}

// squash drops whitespace so trimming at chunk edges is ignored.
func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}
