package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// exemptRules are never limited.
var exemptRules = []Rule{
	{Pattern: "GET /health"},
	{Pattern: "GET /metrics"},
}

// DefaultRules returns the per-route limits. Model-backed routes get hourly
// quotas and auth routes per-minute ones.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "POST /generations", Limit: 60, Window: time.Hour, Burst: 10},
		{Pattern: "POST /jobs/{id}/run", Limit: 30, Window: time.Hour, Burst: 5},
		{Pattern: "POST /jobs/{id}/run/stream", Limit: 30, Window: time.Hour, Burst: 5},
		{Pattern: "POST /trends/{niche}/refresh", Limit: 20, Window: time.Hour, Burst: 3},
		{Pattern: "POST /intelligence/{niche}/refresh", Limit: 20, Window: time.Hour, Burst: 3},

		{Pattern: "POST /auth/register", Limit: 10, Window: time.Minute, Burst: 5},
		{Pattern: "POST /auth/login", Limit: 20, Window: time.Minute, Burst: 10},
		{Pattern: "PUT /auth/password", Limit: 10, Window: time.Minute, Burst: 5},
	}
}

// LoadConfig builds the limiter configuration from the environment:
//
//	RATE_LIMIT_ENABLED   true|false (default true)
//	RATE_LIMIT_DEFAULT   quota for unmatched routes (default 1000/1m)
//	RATE_LIMIT_RULES     overrides, "POST /generations=30/1h;POST /auth/login=5/1m"
//	RATE_LIMIT_ALLOW     comma-separated client IPs that are never limited
//	RATE_LIMIT_DENY      comma-separated client IPs that are always rejected
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Rules:           DefaultRules(),
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_ENABLED: %w", err)
		}
		cfg.Enabled = enabled
	}
	if v := os.Getenv("RATE_LIMIT_DEFAULT"); v != "" {
		limit, window, err := ParseQuota(v)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_DEFAULT: %w", err)
		}
		cfg.DefaultLimit, cfg.DefaultWindow = limit, window
	}
	if v := os.Getenv("RATE_LIMIT_RULES"); v != "" {
		overrides, err := ParseRules(v)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_RULES: %w", err)
		}
		cfg.Rules = mergeRules(cfg.Rules, overrides)
	}
	cfg.Allow = parseIPList(os.Getenv("RATE_LIMIT_ALLOW"))
	cfg.Deny = parseIPList(os.Getenv("RATE_LIMIT_DENY"))
	return cfg, nil
}

// ParseRules parses semicolon-separated "PATTERN=QUOTA" entries.
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, quota, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rule %q: want PATTERN=QUOTA", entry)
		}
		rule, err := NewRule(strings.TrimSpace(pattern), quota, 0)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// mergeRules replaces base rules that share a pattern with an override and
// appends the rest.
func mergeRules(base, overrides []Rule) []Rule {
	out := append([]Rule(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Pattern == o.Pattern {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
