package llm

import "strings"

// CleanJSONBlock strips markdown fences and any prose around the first JSON
// object or array in a model response. Text with no JSON is returned trimmed.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(stripFence(strings.TrimSpace(text)))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	var extracted string
	if text[start] == '{' {
		extracted = extractJSONObject(text[start:])
	} else {
		extracted = extractJSONArray(text[start:])
	}
	if extracted == "" {
		// Unbalanced: hand back what we have and let the decoder report it.
		return strings.TrimSpace(text[start:])
	}
	return extracted
}

// stripFence removes a ```lang ... ``` wrapper when present.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		// A fence may still follow a preamble.
		idx := strings.Index(text, "```")
		if idx < 0 {
			return text
		}
		text = text[idx:]
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := text[:idx]
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return text
}

func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced returns the prefix of s spanning one balanced open/close
// pair, ignoring delimiters inside JSON strings. s must start with open.
func extractBalanced(s string, open, closing byte) string {
	if s == "" || s[0] != open {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
