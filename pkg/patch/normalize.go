package patch

import "strings"

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// normalizeWhitespace strips every whitespace byte from s. Runs of
// whitespace and incidental spacing around tokens both disappear, so the
// model's memory of a block and the block's actual formatting compare equal.
func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// normalizeWithMapping builds the whitespace-stripped view of s together
// with a position map: mapping[i] is the byte offset in s of the character
// that produced normalized byte i.
func normalizeWithMapping(s string) (string, []int) {
	var normalized strings.Builder
	normalized.Grow(len(s))
	mapping := make([]int, 0, len(s))

	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			continue
		}
		normalized.WriteByte(s[i])
		mapping = append(mapping, i)
	}

	return normalized.String(), mapping
}

// indexAll returns the start offsets of every non-overlapping occurrence of
// needle in haystack.
func indexAll(haystack, needle string) []int {
	if needle == "" {
		return nil
	}
	var offsets []int
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return offsets
		}
		offsets = append(offsets, from+idx)
		from += idx + len(needle)
	}
}

// originalSpan maps a normalized-view match [normStart, normStart+normLen)
// back to the corresponding byte span in the untouched original text. The
// span runs from the first matched character through the last one, so
// surrounding whitespace and content stay exactly as they were.
func originalSpan(mapping []int, normStart, normLen int) (int, int, bool) {
	if normLen <= 0 || normStart < 0 || normStart+normLen > len(mapping) {
		return 0, 0, false
	}
	start := mapping[normStart]
	end := mapping[normStart+normLen-1] + 1
	if end <= start {
		return 0, 0, false
	}
	return start, end, true
}
