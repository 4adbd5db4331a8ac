// Package spartan implements Spartan Format, a deterministic cleanup pass that
// strips filler, emoji and wordy phrasing from generated copy.
package spartan

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/content-engine/internal/types"
)

const (
	markOpen  = '\uE000'
	markClose = '\uE001'
)

type phrase struct {
	re          *regexp.Regexp
	replacement string
}

var wordyPhrases = buildPhrases([][2]string{
	{"due to the fact that", "because"},
	{"in spite of the fact that", "although"},
	{"at this point in time", "now"},
	{"at the end of the day", "ultimately"},
	{"in the event that", "if"},
	{"for the purpose of", "for"},
	{"has the ability to", "can"},
	{"have the ability to", "can"},
	{"a large number of", "many"},
	{"the majority of", "most"},
	{"first and foremost", "first"},
	{"each and every", "every"},
	{"whether or not", "whether"},
	{"is able to", "can"},
	{"are able to", "can"},
	{"in order to", "to"},
	{"a lot of", "many"},
	{"lots of", "many"},
	{"prior to", "before"},
})

var fillerWords = []string{
	"just", "really", "very", "basically", "actually", "literally",
	"totally", "absolutely", "honestly", "super", "simply", "truly",
}

var (
	fillerRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(fillerWords, "|") + `)\b`)
	// Hashtags and URLs are swapped out for private-use markers while the text is rewritten.
	protectedRe     = regexp.MustCompile(`https?://[^\s]*[^\s.,!?;:)\]]|www\.[^\s]*[^\s.,!?;:)\]]|#[\p{L}\p{N}_]+`)
	markerRe        = regexp.MustCompile(`\x{E000}([0-9]+)\x{E001}`)
	emojiRe         = regexp.MustCompile(`[\p{So}\x{FE0F}\x{FE0E}\x{200D}\x{20E3}\x{1F3FB}-\x{1F3FF}\x{E0020}-\x{E007F}]`)
	dashRe          = regexp.MustCompile(`\s*[\x{2014}\x{2013}]\s*`)
	repeatMarkRe    = regexp.MustCompile(`([!?])[!?]+`)
	spaceBeforeRe   = regexp.MustCompile(`[ \t]+([,.!?;:])`)
	doubleCommaRe   = regexp.MustCompile(`,(?:\s*,)+`)
	commaBeforeEnd  = regexp.MustCompile(`,([.!?;:])`)
	leadingPunctRe  = regexp.MustCompile(`^[,;:]\s*`)
	spaceRunRe      = regexp.MustCompile(`[ \t]+`)
	trailingComma   = regexp.MustCompile(`,\s*$`)
	sentenceEndings = ".!?"
)

func buildPhrases(pairs [][2]string) []phrase {
	out := make([]phrase, 0, len(pairs))
	for _, p := range pairs {
		words := strings.Fields(p[0])
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		out = append(out, phrase{
			re:          regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`),
			replacement: p[1],
		})
	}
	return out
}

// Format applies Spartan Format to text. It is idempotent and leaves
// hashtags and URLs untouched.
func Format(text string) string {
	if strings.TrimSpace(text) == "" {
		return strings.TrimSpace(text)
	}

	var protected []string
	text = protectedRe.ReplaceAllStringFunc(text, func(m string) string {
		protected = append(protected, m)
		return string(markOpen) + strconv.Itoa(len(protected)-1) + string(markClose)
	})

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, formatLine(line))
	}
	text = strings.TrimSpace(collapseBlankLines(out))

	return markerRe.ReplaceAllStringFunc(text, func(m string) string {
		idx, err := strconv.Atoi(markerRe.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(protected) {
			return m
		}
		return protected[idx]
	})
}

func formatLine(line string) string {
	// Emoji and fillers go first so the phrases they interrupt are matched
	// in the same pass.
	line = emojiRe.ReplaceAllString(line, "")
	line = removeFillers(line)
	line = spaceRunRe.ReplaceAllString(line, " ")
	for _, p := range wordyPhrases {
		line = p.re.ReplaceAllString(line, p.replacement)
	}
	line = dashRe.ReplaceAllString(line, ", ")
	line = repeatMarkRe.ReplaceAllString(line, "$1")

	line = spaceRunRe.ReplaceAllString(line, " ")
	line = spaceBeforeRe.ReplaceAllString(line, "$1")
	line = doubleCommaRe.ReplaceAllString(line, ",")
	line = commaBeforeEnd.ReplaceAllString(line, "$1")
	line = strings.TrimSpace(line)
	line = leadingPunctRe.ReplaceAllString(line, "")
	line = trailingComma.ReplaceAllString(line, "")

	return capitalizeSentences(line)
}

// removeFillers drops filler words unless they are part of a hyphenated compound.
func removeFillers(line string) string {
	matches := fillerRe.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return line
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if (start > 0 && line[start-1] == '-') || (end < len(line) && line[end] == '-') {
			continue
		}
		sb.WriteString(line[last:start])
		last = end
	}
	sb.WriteString(line[last:])
	return sb.String()
}

// capitalizeSentences upper-cases the first letter of the line and of every
// sentence that follows terminal punctuation and whitespace.
func capitalizeSentences(line string) string {
	var sb strings.Builder
	sb.Grow(len(line))

	capNext := true
	prevEnd := false
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRuneInString(line[i:])
		switch {
		case r == markOpen:
			// Protected token: copy through to the closing marker untouched.
			end := strings.IndexRune(line[i:], markClose)
			if end < 0 {
				sb.WriteString(line[i:])
				return sb.String()
			}
			end += i + utf8.RuneLen(markClose)
			sb.WriteString(line[i:end])
			i = end
			capNext = false
			prevEnd = false
			continue
		case unicode.IsSpace(r):
			if prevEnd {
				capNext = true
			}
		case unicode.IsLetter(r):
			if capNext {
				r = unicode.ToUpper(r)
			}
			capNext = false
			prevEnd = false
		case strings.ContainsRune(sentenceEndings, r):
			prevEnd = true
		case r == '"' || r == '\'' || r == '(' || r == '\u201c':
			// Opening quotes keep a pending capital.
		default:
			capNext = false
			prevEnd = false
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

func collapseBlankLines(lines []string) string {
	var kept []string
	blank := false
	for _, l := range lines {
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// FormatContent returns a copy of c with Spartan Format applied to the hook,
// body, call to action and every caption. Hashtags are left as they are.
func FormatContent(c types.GeneratedContent) types.GeneratedContent {
	out := types.GeneratedContent{
		Hook:         Format(c.Hook),
		Body:         Format(c.Body),
		CallToAction: Format(c.CallToAction),
		Hashtags:     append([]string(nil), c.Hashtags...),
	}
	if c.Captions != nil {
		out.Captions = make(map[types.Platform]string, len(c.Captions))
		for p, caption := range c.Captions {
			out.Captions[p] = Format(caption)
		}
	}
	return out
}
