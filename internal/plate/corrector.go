package plate

import "regexp"

// The corrector rewrites systematic OCR misreads using the plate grammar
// instead of model retraining. It expects input that is already uppercase
// with separators stripped.

type charClass int

const (
	classLetter charClass = iota
	classDigit
)

// Visually confusable counterparts, applied only where the grammar expects
// the other character class.
var digitToLetter = map[byte]byte{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'5': 'S',
	'8': 'B',
}

var letterToDigit = map[byte]byte{
	'O': '0',
	'I': '1',
	'Z': '2',
	'S': '5',
	'B': '8',
}

// span is one positionally scoped expectation of the plate grammar.
// start/end are byte offsets; non-positive values count from the end of the
// string. A span only applies to plates whose length falls in
// [minLen, maxLen], so corrections never run where the grammar is ambiguous
// for the observed length.
type span struct {
	class  charClass
	start  int
	end    int
	minLen int
	maxLen int
}

var grammarSpans = []span{
	{classLetter, 0, 2, 3, 15},   // region code
	{classDigit, 2, 4, 9, 10},    // district number
	{classLetter, 4, -4, 10, 10}, // series letters
	{classDigit, -4, 0, 9, 10},   // registration number
}

// Multi-character misread patterns seen in the field. 'M' reads as 'H' often
// enough that an HH region code or an H opening a two-letter series is
// rewritten.
var patternRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`^HH([0-9])`), "MH$1"},
	{regexp.MustCompile(`([0-9])H([A-Z])`), "${1}M${2}"},
}

// Correct applies the grammar correction table to a raw OCR string. Strings
// shorter than 3 characters pass through unchanged. Correct is total and
// idempotent: characters with no documented counterpart are left as-is, and
// corrected output maps to itself.
func Correct(text string) string {
	n := len(text)
	if n < 3 {
		return text
	}

	b := []byte(text)
	for _, sp := range grammarSpans {
		if n < sp.minLen || n > sp.maxLen {
			continue
		}
		from, to := sp.start, sp.end
		if from < 0 {
			from = n + from
		}
		if to <= 0 {
			to = n + to
		}
		for i := from; i < to && i < n; i++ {
			b[i] = correctClass(b[i], sp.class)
		}
	}

	out := collapseDoubledPrefix(string(b))
	for _, rule := range patternRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return out
}

func correctClass(c byte, want charClass) byte {
	switch want {
	case classLetter:
		if r, ok := digitToLetter[c]; ok {
			return r
		}
	case classDigit:
		if r, ok := letterToDigit[c]; ok {
			return r
		}
	}
	return c
}

// collapseDoubledPrefix drops a doubled first letter when doing so exposes a
// known region code, e.g. MMH12... -> MH12...
func collapseDoubledPrefix(text string) string {
	if len(text) < 4 || text[0] != text[1] {
		return text
	}
	if IsRegionCode(text[:2]) || !IsRegionCode(text[1:3]) {
		return text
	}
	return text[1:]
}
