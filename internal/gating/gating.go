// Package gating holds the gated-family predicate: the maintained pattern
// list that marks newer flagship model generations as approval-required.
package gating

import (
	"strings"
	"time"
)

// Gate matches identifiers and provider names against a configured set of
// gated-family markers. The pattern set is configuration, not code; update
// it in modelscout.yml when providers ship a new gated generation.
type Gate struct {
	patterns []string
}

// New builds a Gate from the configured marker list. Matching is
// case-insensitive substring containment.
func New(patterns []string) Gate {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return Gate{patterns: lowered}
}

// RequiresApproval reports whether the identifier or provider name carries
// any gated-family marker.
func (g Gate) RequiresApproval(id, providerName string) bool {
	haystacks := []string{strings.ToLower(id), strings.ToLower(providerName)}
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		for _, p := range g.patterns {
			if strings.Contains(h, p) {
				return true
			}
		}
	}
	return false
}

// Patterns returns a copy of the configured marker list.
func (g Gate) Patterns() []string {
	out := make([]string, len(g.patterns))
	copy(out, g.patterns)
	return out
}

// ReleaseDate extracts the first maximal run of exactly eight consecutive
// digits from an identifier and interprets it as YYYYMMDD. It returns the
// date formatted as 2006-01-02 and true, or "" and false when no such run
// exists or the digits do not form a calendar date.
func ReleaseDate(id string) (string, bool) {
	runStart := -1
	for i := 0; i <= len(id); i++ {
		digit := i < len(id) && id[i] >= '0' && id[i] <= '9'
		if digit {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart == 8 {
			if t, err := time.Parse("20060102", id[runStart:i]); err == nil {
				return t.Format("2006-01-02"), true
			}
		}
		runStart = -1
	}
	return "", false
}
