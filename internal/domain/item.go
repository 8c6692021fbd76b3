package domain

import "time"

// Item is a paper discovered on the upstream index.
type Item struct {
	ID          string
	Title       string
	Abstract    string
	URL         string
	Categories  []string
	PublishedAt time.Time
}

// Language tags a summary with the language it was requested in.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "ja"
)

// Summary is one language-specific digest of an abstract.
type Summary struct {
	Language Language
	Text     string
}

// SummaryRecord is everything the pipeline derives for a single Item.
type SummaryRecord struct {
	Item      Item
	Summaries []Summary
	Tags      []string
}
