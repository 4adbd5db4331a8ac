package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule limits one route. Pattern uses ServeMux syntax: "METHOD /path/{wildcard}".
type Rule struct {
	Pattern string
	Limit   int
	Window  time.Duration
	Burst   int // defaults to Limit

	method   string
	segments []string
}

// NewRule parses pattern and quota ("60/1h") into a Rule.
func NewRule(pattern, quota string, burst int) (Rule, error) {
	limit, window, err := ParseQuota(quota)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Pattern: pattern, Limit: limit, Window: window, Burst: burst}.compile()
}

// compile returns a copy of r with its pattern parsed.
func (r Rule) compile() (Rule, error) {
	method, path, ok := strings.Cut(strings.TrimSpace(r.Pattern), " ")
	if !ok || method == "" || !strings.HasPrefix(path, "/") {
		return Rule{}, fmt.Errorf("invalid rate limit pattern %q", r.Pattern)
	}
	r.method = strings.ToUpper(method)
	r.segments = splitPath(path)
	return r, nil
}

// compileRules parses every pattern, failing on the first invalid one.
func compileRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		c, err := r.compile()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Match reports whether the rule covers a request. A "{name}" segment matches
// any single non-empty segment.
func (r Rule) Match(method, path string) bool {
	if r.segments == nil {
		c, err := r.compile()
		if err != nil {
			return false
		}
		r = c
	}
	if r.method != method {
		return false
	}
	parts := splitPath(path)
	if len(parts) != len(r.segments) {
		return false
	}
	for i, seg := range r.segments {
		if isWildcard(seg) {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if seg != parts[i] {
			return false
		}
	}
	return true
}

// ParseQuota parses "<requests>/<window>", e.g. "60/1h" or "10/1m".
func ParseQuota(s string) (int, time.Duration, error) {
	count, per, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid quota %q: want <requests>/<window>", s)
	}
	limit, err := strconv.Atoi(count)
	if err != nil || limit < 0 {
		return 0, 0, fmt.Errorf("invalid quota %q: bad request count", s)
	}
	window, err := time.ParseDuration(per)
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("invalid quota %q: bad window", s)
	}
	return limit, window, nil
}

// matchRule returns the first rule covering the request, or nil.
func matchRule(rules []Rule, method, path string) *Rule {
	for i := range rules {
		if rules[i].Match(method, path) {
			return &rules[i]
		}
	}
	return nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func isWildcard(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
