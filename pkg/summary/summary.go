// Package summary structures the analyzer's free-text results output.
//
// The analyzer's summary is prose-like, not a strict grammar; the parser does
// best-effort classification so the text reads well inside the export
// document. The classification rules are inherited from the original tool and
// are deliberately heuristic: a value containing a colon, for example, will
// split on the first colon regardless.
package summary

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a parsed summary entry.
type Kind string

const (
	// KindSection is a dashed banner heading.
	KindSection Kind = "section"
	// KindItem is a name with an optional value.
	KindItem Kind = "item"
	// KindNote is free-form text.
	KindNote Kind = "note"
)

// Entry is one classified line of the analyzer summary.
type Entry struct {
	Kind Kind
	// Text carries the heading for sections and the full line for notes.
	Text string
	// Name and Value are set for items. Value may be empty.
	Name  string
	Value string
}

// Section builds a section entry.
func Section(text string) Entry { return Entry{Kind: KindSection, Text: text} }

// Item builds an item entry.
func Item(name, value string) Entry { return Entry{Kind: KindItem, Name: name, Value: value} }

// Note builds a note entry.
func Note(text string) Entry { return Entry{Kind: KindNote, Text: text} }

var bannerRe = regexp.MustCompile(`^-+\s*(.*?)\s*-+$`)

// Parse converts summaryText into a sequence of classified entries.
//
// Physical lines ending in ":" or "," are treated as wrapped and merged with
// the following line before classification, which keeps key/value pairs that
// the analyzer wrapped across lines in a single entry.
func Parse(summaryText string) []Entry {
	lines := splitLines(summaryText)
	merged := mergeContinuations(lines)

	entries := make([]Entry, 0, len(merged))
	for _, line := range merged {
		entries = append(entries, classify(line))
	}
	return entries
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func mergeContinuations(lines []string) []string {
	var merged []string
	for i := 0; i < len(lines); i++ {
		entry := lines[i]
		for (strings.HasSuffix(entry, ":") || strings.HasSuffix(entry, ",")) && i+1 < len(lines) {
			i++
			entry = entry + " " + lines[i]
		}
		merged = append(merged, entry)
	}
	return merged
}

func classify(line string) Entry {
	if m := bannerRe.FindStringSubmatch(line); m != nil && m[1] != "" {
		return Section(m[1])
	}

	if idx := strings.Index(line, ":"); idx >= 0 {
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		return Item(name, value)
	}

	if fields := strings.Fields(line); len(fields) >= 2 {
		last := fields[len(fields)-1]
		if looksLikeValue(last) {
			name := strings.TrimSpace(strings.TrimSuffix(line, last))
			return Item(name, last)
		}
	}

	return Note(line)
}

// looksLikeValue reports whether token is a boolean-like word or a number,
// after stripping thousands separators.
func looksLikeValue(token string) bool {
	switch strings.ToLower(token) {
	case "true", "false", "yes", "no", "pass", "fail":
		return true
	}
	stripped := strings.ReplaceAll(token, ",", "")
	if stripped == "" {
		return false
	}
	_, err := strconv.ParseFloat(stripped, 64)
	return err == nil
}
