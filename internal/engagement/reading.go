// Package engagement decides whether a reader actually read a post.
package engagement

import (
	"regexp"
	"strings"
)

const (
	WordsPerMinute = 200

	// QualifyingScrollPct is the scroll depth a reader must reach.
	QualifyingScrollPct = 80
	minActiveFraction   = 0.5
	fastScrollFraction  = 0.2
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Session is what the reader's browser reports when leaving a post.
type Session struct {
	MaxScrollPct  float64
	ActiveSeconds int
}

// WordCount strips markup and counts whitespace-separated words.
func WordCount(html string) int {
	return len(strings.Fields(tagPattern.ReplaceAllString(html, " ")))
}

// ReadingTime is the expected reading time in seconds.
func ReadingTime(words int) float64 {
	return float64(words) / WordsPerMinute * 60
}

// Qualifies reports whether s counts as a genuine read of a post with the given word count.
func Qualifies(s Session, words int) bool {
	return s.MaxScrollPct >= QualifyingScrollPct &&
		float64(s.ActiveSeconds) >= ReadingTime(words)*minActiveFraction
}

// TooFast reports a reader who reached the qualifying depth before a fifth of the reading time.
func TooFast(s Session, words int) bool {
	return s.MaxScrollPct >= QualifyingScrollPct &&
		float64(s.ActiveSeconds) < ReadingTime(words)*fastScrollFraction
}
