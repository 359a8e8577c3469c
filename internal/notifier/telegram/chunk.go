package telegram

import "strings"

// Split breaks text into chunks of at most limit runes, preferring to cut
// at sep. Text within the limit (or limit <= 0) is returned whole.
//
// Runes accumulate until the chunk is full. The next rune then closes the
// chunk: at that rune when it is sep itself, else at the last sep inside
// the chunk (the tail carries over with the rune), else right there. The
// sep at a cut is dropped, chunks are whitespace-trimmed and empty chunks
// are discarded. Only a run longer than limit without any sep is cut
// mid-run.
func Split(text string, limit int, sep rune) []string {
	rs := []rune(text)
	if limit <= 0 || len(rs) <= limit {
		return []string{text}
	}

	var out []string
	emit := func(chunk []rune) {
		if s := strings.TrimSpace(string(chunk)); s != "" {
			out = append(out, s)
		}
	}

	cur := make([]rune, 0, limit)
	for _, r := range rs {
		if len(cur) < limit {
			cur = append(cur, r)
			continue
		}
		if r == sep {
			emit(cur)
			cur = cur[:0]
			continue
		}
		if i := lastIndex(cur, sep); i >= 0 {
			emit(cur[:i])
			tail := append([]rune(nil), cur[i+1:]...)
			cur = append(cur[:0], tail...)
		} else {
			emit(cur)
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	emit(cur)
	return out
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
