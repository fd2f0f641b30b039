package newsreap

import (
	"github.com/google/uuid"
)

// CandidateEntry is a headline/link pair discovered on a listing page (or in
// a feed), prior to detail extraction. The slug is a natural key derived from
// the headline and is unique within a run even for duplicate headlines.
type CandidateEntry struct {
	Headline string `json:"headline"`
	Link     string `json:"link"`
	Slug     string `json:"slug"`
}

// ArticleRecord is the fully extracted form of a candidate entry. Every field
// carries a value: extraction failure substitutes the field's documented
// default rather than leaving it absent. Records are immutable once assembled
// and are replaced wholesale by the next run's sweep for the same resource.
type ArticleRecord struct {
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug"`
	Headline string    `json:"headline"`
	Summary  string    `json:"summary"`
	Body     string    `json:"body"`
	Author   string    `json:"author"`
	Resource string    `json:"resource"`
	Media    string    `json:"media"`
	Link     string    `json:"link"`
	Date     string    `json:"date"`
}

// NewArticleRecord creates a record for an entry with a fresh unique ID and
// the run's resource tag. Extracted fields are attached by the caller.
func NewArticleRecord(entry CandidateEntry, resource string) ArticleRecord {
	return ArticleRecord{
		ID:       uuid.New(),
		Slug:     entry.Slug,
		Headline: entry.Headline,
		Link:     entry.Link,
		Resource: resource,
	}
}
