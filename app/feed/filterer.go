package feed

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	MinTitleLength       = 10
	MinDescriptionLength = 20
)

var DefaultSpamTerms = []string{
	"casino",
	"bonus",
	"free money",
	"click here",
	"limited time",
}

// Filterer decides whether a normalized item is acceptable at parse time.
type Filterer struct {
	spamTerms []string
}

func NewFilterer(spamTerms ...string) *Filterer {
	if len(spamTerms) == 0 {
		spamTerms = DefaultSpamTerms
	}

	// cases.Caser is stateful, so each call site gets its own.
	fold := cases.Fold()
	terms := make([]string, 0, len(spamTerms))
	for _, term := range spamTerms {
		if term = strings.TrimSpace(term); term != "" {
			terms = append(terms, fold.String(term))
		}
	}

	return &Filterer{spamTerms: terms}
}

// Validate reports whether item passes, with a reason when it does not.
func (f *Filterer) Validate(item Item) (bool, string) {
	if utf8.RuneCountInString(item.Title) < MinTitleLength {
		return false, fmt.Sprintf("title shorter than %d characters", MinTitleLength)
	}
	if utf8.RuneCountInString(item.Description) < MinDescriptionLength {
		return false, fmt.Sprintf("description shorter than %d characters", MinDescriptionLength)
	}
	if !isAbsoluteHTTP(item.Link) {
		return false, "link is not an absolute http(s) URL"
	}

	text := cases.Fold().String(item.Title + " " + item.Description)
	for _, term := range f.spamTerms {
		if strings.Contains(text, term) {
			return false, fmt.Sprintf("contains blocked term '%s'", term)
		}
	}

	return true, ""
}
