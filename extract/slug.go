package extract

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Slug derivation constants: how much of the headline is kept, and the
// truncated lengths of the time and random components of the suffix.
const (
	slugHeadlineTokens = 3
	slugTimeChars      = 6
	slugRandChars      = 6
)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// Slug derives a short, collision-resistant identifier from a headline: the
// first few words lowercased with non-letters stripped, followed by a
// disambiguating suffix built from the current time and a random draw. Two
// calls never collide in practice even for byte-identical headlines, since
// the random component alone guards against same-millisecond duplicates.
func Slug(headline string) string {
	tokens := strings.Fields(headline)
	if len(tokens) > slugHeadlineTokens {
		tokens = tokens[:slugHeadlineTokens]
	}

	var b strings.Builder
	for _, token := range tokens {
		for _, r := range strings.ToLower(token) {
			if unicode.IsLetter(r) {
				b.WriteRune(r)
			}
		}
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	if len(ts) > slugTimeChars {
		ts = ts[len(ts)-slugTimeChars:]
	}
	b.WriteString(ts)

	for range slugRandChars {
		b.WriteByte(base36Digits[rand.IntN(len(base36Digits))])
	}

	return b.String()
}
