// Package toolutil provides shared helper functions for the MCP tools.
package toolutil

import (
	"errors"
	"strings"
	"unicode"
)

// SplitURLs splits free text (one URL per line, or separated by spaces or
// commas) into trimmed, de-duplicated entries in input order.
func SplitURLs(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	return MergeUnique(fields)
}

// MergeUnique concatenates lists, dropping blanks and repeats.
func MergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// UserError returns a message fit for a tool caller: the outermost
// sentinel's text when err wraps one of sentinels, err.Error() otherwise.
func UserError(err error, sentinels ...error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
