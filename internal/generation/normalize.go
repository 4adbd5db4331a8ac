package generation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/content-engine/internal/types"
)

// minCaptionText is the shortest caption text kept before hashtags are dropped
// to make room.
const minCaptionText = 40

// Normalize cleans model output for the requested platforms: hashtags are
// canonicalised, captions for other platforms are dropped, missing captions
// are synthesised from the hook and call to action, and each caption is fitted
// to its platform limits together with its hashtags.
func Normalize(content types.GeneratedContent, platforms []types.Platform) types.GeneratedContent {
	out := types.GeneratedContent{
		Hook:         strings.TrimSpace(content.Hook),
		Body:         strings.TrimSpace(content.Body),
		CallToAction: strings.TrimSpace(content.CallToAction),
		Hashtags:     NormalizeHashtags(content.Hashtags),
		Captions:     make(map[types.Platform]string, len(platforms)),
	}

	for _, p := range platforms {
		spec, ok := p.Spec()
		if !ok {
			continue
		}
		caption := strings.TrimSpace(stripHashtags(content.Captions[p]))
		if caption == "" {
			caption = strings.TrimSpace(out.Hook + " " + out.CallToAction)
		}
		tags := out.Hashtags
		if len(tags) > spec.HashtagLimit {
			tags = tags[:spec.HashtagLimit]
		}
		out.Captions[p] = FitCaption(caption, tags, spec.CaptionLimit)
	}
	return out
}

// NormalizeHashtags returns lowercase, '#'-prefixed, de-duplicated hashtags in
// their original order. Characters other than letters, digits and underscores
// are removed.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		var sb strings.Builder
		for _, r := range strings.ToLower(tag) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				sb.WriteRune(r)
			}
		}
		if sb.Len() == 0 {
			continue
		}
		normalized := "#" + sb.String()
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

// FitCaption joins text and tags so the result is at most limit characters.
// Trailing tags are dropped first when they would leave less than a short
// sentence of text, then the text is cut on a word boundary.
func FitCaption(text string, tags []string, limit int) string {
	tagLine := strings.Join(tags, " ")
	budget := limit
	for len(tags) > 0 {
		tagLine = strings.Join(tags, " ")
		budget = limit - utf8.RuneCountInString(tagLine) - 2
		if budget >= minCaptionText {
			break
		}
		tags = tags[:len(tags)-1]
	}
	if len(tags) == 0 {
		tagLine = ""
		budget = limit
	}

	text = TruncateWords(text, budget)
	switch {
	case tagLine == "":
		return text
	case text == "":
		return tagLine
	default:
		return text + "\n\n" + tagLine
	}
}

// TruncateWords shortens s to at most limit runes, cutting at the last word
// boundary when there is one.
func TruncateWords(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if next := runes[limit]; !unicode.IsSpace(next) {
		if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '-'
	})
}

// stripHashtags removes #tags from caption text; they are re-appended by
// FitCaption from the normalised list.
func stripHashtags(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		words := fields[:0]
		for _, f := range fields {
			if !strings.HasPrefix(f, "#") {
				words = append(words, f)
			}
		}
		if len(words) > 0 {
			kept = append(kept, strings.Join(words, " "))
		}
	}
	return strings.Join(kept, "\n")
}
