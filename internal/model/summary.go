package model

// Category is one of the fixed labels a message subject is sorted into.
type Category string

const (
	CategoryFinance    Category = "Finance"
	CategoryWork       Category = "Work"
	CategoryPromotions Category = "Promotions"
	CategoryOthers     Category = "Others"
)

// Categories lists every category in classification priority order.
var Categories = []Category{
	CategoryFinance,
	CategoryWork,
	CategoryPromotions,
	CategoryOthers,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// EmailSummary is the record derived from a single fetched message.
type EmailSummary struct {
	// Sender is the decoded From header as it appeared on the message.
	Sender string `json:"from" yaml:"from" db:"sender"`

	// Subject is the decoded Subject header.
	Subject string `json:"subject" yaml:"subject" db:"subject"`

	// Category is the label assigned by the classifier.
	Category Category `json:"category" yaml:"category" db:"category"`
}
