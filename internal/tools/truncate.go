package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// truncationMarker tags already-truncated output so a second pass is a no-op
const truncationMarker = "[output truncated:"

// DefaultMaxLines and DefaultMaxBytes bound tool output fed back to the model
const (
	DefaultMaxLines = 2000
	DefaultMaxBytes = 48 * 1024
)

// noticeReserve holds back room in the byte budget for the truncation notice
const noticeReserve = 160

// TruncateOptions holds the output budgets
type TruncateOptions struct {
	MaxLines int
	MaxBytes int
}

// DefaultTruncateOptions returns the standard budgets
func DefaultTruncateOptions() TruncateOptions {
	return TruncateOptions{MaxLines: DefaultMaxLines, MaxBytes: DefaultMaxBytes}
}

// TruncateResult is the outcome of a truncation pass
type TruncateResult struct {
	Text         string
	Truncated    bool
	RemovedLines int
	RemovedBytes int
}

// Truncate bounds text to the line and byte budgets, keeping a head and a
// short tail around a notice that says how much was cut. Text already
// carrying the notice passes through unchanged, so repeated passes are
// idempotent.
func Truncate(text string, opts TruncateOptions) TruncateResult {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if strings.Contains(text, truncationMarker) {
		return TruncateResult{Text: text}
	}
	if len(text) <= opts.MaxBytes && strings.Count(text, "\n") < opts.MaxLines {
		return TruncateResult{Text: text}
	}

	// shrink by lines first, then tighten by bytes; the head keeps most of
	// the budget, the tail keeps the end of the output visible
	lines := strings.Split(text, "\n")
	head, tail := lines, []string(nil)
	if len(lines) > opts.MaxLines {
		h := opts.MaxLines * 3 / 4
		head, tail = lines[:h], lines[len(lines)-(opts.MaxLines-h):]
	}

	// the notice has to fit inside the byte budget too
	budget := opts.MaxBytes - noticeReserve
	if budget < 1 {
		budget = opts.MaxBytes
	}
	headText := strings.Join(head, "\n")
	tailText := strings.Join(tail, "\n")
	if len(headText)+len(tailText) > budget {
		tailText = trimTailToRune(tailText, budget/4)
		headText = trimHeadToRune(headText, budget-len(tailText))
	}

	removedLines := len(lines) - len(head) - len(tail)
	removedBytes := len(text) - len(headText) - len(tailText)
	if removedLines < 0 {
		removedLines = 0
	}
	if removedBytes < 0 {
		removedBytes = 0
	}

	notice := fmt.Sprintf("\n... %s %d lines, %d bytes omitted. Narrow the command or read the source directly for the full output.]\n",
		truncationMarker, removedLines, removedBytes)

	return TruncateResult{
		Text:         headText + notice + tailText,
		Truncated:    true,
		RemovedLines: removedLines,
		RemovedBytes: removedBytes,
	}
}

// trimHeadToRune cuts s to at most n bytes, backing off so the cut never
// splits a UTF-8 sequence
func trimHeadToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// trimTailToRune keeps at most the last n bytes of s, advancing to the next
// rune start
func trimTailToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
