package views

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sanitizeForTerminal prepares peer-supplied text for a tview cell. Control
// characters are dropped so a message cannot move the cursor or change the
// terminal's state; tabs become spaces. Codepoints tcell measures wrongly
// (skin tones, joiners, variation selectors) are dropped too, which
// collapses emoji sequences to their base character.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			continue
		case r == '\t':
			b.WriteByte(' ')
		case r == '\n':
			b.WriteRune(r)
		case unicode.IsControl(r), isWidthBreaking(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWidthBreaking(r rune) bool {
	return (r >= 0x1F3FB && r <= 0x1F3FF) ||
		r == 0x200D ||
		(r >= 0xFE00 && r <= 0xFE0F) ||
		(r >= 0xE0100 && r <= 0xE01EF)
}
