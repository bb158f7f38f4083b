package answer

import (
	"regexp"
	"strings"
	"time"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

// Deadline is a calendar-ready date extracted from a generated answer.
type Deadline struct {
	Title              string `json:"title"`
	Date               string `json:"date"` // YYYY-MM-DD
	OriginalDateString string `json:"original_date_string"`
	Context            string `json:"context"`
	SourceDocument     string `json:"source_document,omitempty"`
	Description        string `json:"description"`
	CanAddToCalendar   bool   `json:"can_add_to_calendar"`
}

// datePatterns are tried in order; the first pattern with a parseable,
// future date wins.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}(?:st|nd|rd|th)?,? \d{4}`), // March 15, 2026 / March 15th 2026
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),                           // 2026-03-15
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),                       // 3/15/2026
	regexp.MustCompile(`\d{1,2}(?:st|nd|rd|th) [A-Z][a-z]+ \d{4}`),    // 15th March 2026
	regexp.MustCompile(`\d{1,2} [A-Z][a-z]+ \d{4}`),                   // 15 March 2026
}

var ordinalRe = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)`)

// dateLayouts cover the shapes datePatterns can produce after ordinal
// suffixes are stripped.
var dateLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"2006-01-02",
	"1/2/2006",
	"2 January 2006",
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:deadline for|deadline is for|submission deadline for|due date for)\s+([^.]+)`),
	regexp.MustCompile(`(?i)([^.]+?)\s+(?:deadline|due date)`),
}

const defaultDeadlineTitle = "Campus Deadline"

// ExtractDeadline scans a generated answer for an upcoming date. It only
// runs for deadline-intent answers or answers that mention "deadline", and
// returns nil when no parseable future date is found. now is injected so
// the future-date filter is testable.
func ExtractDeadline(answerText string, intent domain.Intent, now time.Time) *Deadline {
	if intent != domain.IntentDeadline && !strings.Contains(strings.ToLower(answerText), "deadline") {
		return nil
	}

	var found time.Time
	var dateString string
	for _, pat := range datePatterns {
		for _, m := range pat.FindAllString(answerText, -1) {
			if d, ok := parseDate(m); ok {
				found = d
				dateString = m
				break
			}
		}
		if dateString != "" {
			break
		}
	}
	if dateString == "" || !found.After(now) {
		return nil
	}

	// Quote the surrounding text for display.
	idx := strings.Index(answerText, dateString)
	start := max(0, idx-50)
	end := min(len(answerText), idx+100)
	context := strings.TrimSpace(answerText[start:end])

	title := defaultDeadlineTitle
	for _, pat := range titlePatterns {
		if m := pat.FindStringSubmatch(answerText); len(m) > 1 {
			title = strings.TrimSpace(m[1])
			if r := []rune(title); len(r) > 60 {
				title = string(r[:60]) + "..."
			}
			break
		}
	}

	return &Deadline{
		Title:              title,
		Date:               found.Format("2006-01-02"),
		OriginalDateString: dateString,
		Context:            context,
		Description:        "Deadline extracted from campus documents",
		CanAddToCalendar:   true,
	}
}

func parseDate(s string) (time.Time, bool) {
	s = ordinalRe.ReplaceAllString(s, "$1")
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
