package classify

import (
	"strings"

	"github.com/nhle/mailsort/internal/model"
)

// Rule assigns Category to any subject containing Keyword.
type Rule struct {
	Keyword  string
	Category model.Category
}

// Rules is the fixed rule table, in priority order. The first rule whose
// keyword appears in the subject wins.
var Rules = []Rule{
	{Keyword: "invoice", Category: model.CategoryFinance},
	{Keyword: "meeting", Category: model.CategoryWork},
	{Keyword: "promo", Category: model.CategoryPromotions},
}

// Subject returns the category for subject. Matching is case-insensitive;
// a subject matching no rule is Others.
func Subject(subject string) model.Category {
	subj := strings.ToLower(subject)
	for _, r := range Rules {
		if strings.Contains(subj, r.Keyword) {
			return r.Category
		}
	}
	return model.CategoryOthers
}

// Summarize builds the EmailSummary for a decoded sender and subject.
func Summarize(sender, subject string) model.EmailSummary {
	return model.EmailSummary{
		Sender:   sender,
		Subject:  subject,
		Category: Subject(subject),
	}
}
