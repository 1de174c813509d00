package generate

// Stitch removes the longest prefix of chunk that the tail already ends
// with, trying lengths from min(window, len(tail), len(chunk)) down to 1.
// Lengths are counted in runes. It returns the remainder to append and the
// overlap length found (0 when none).
func Stitch(tail, chunk string, window int) (string, int) {
	tr := []rune(tail)
	cr := []rune(chunk)
	limit := min(window, len(tr), len(cr))
	for k := limit; k > 0; k-- {
		if equalRunes(tr[len(tr)-k:], cr[:k]) {
			return string(cr[k:]), k
		}
	}
	return chunk, 0
}

// lastRunes returns the last n runes of s.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
