package domain

import "time"

// IndexDocument is the search-engine projection of a Record.
// It is rebuilt wholesale from the canonical record on every sync.
type IndexDocument struct {
	// ID is the record GUID.
	ID string `json:"id"`

	Kind     RecordKind `json:"kind"`
	Revision int        `json:"revision"`

	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Creator     []string  `json:"creator,omitempty"`
	Genre       []string  `json:"genre,omitempty"`
	Language    string    `json:"language,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	Licence     string    `json:"licence,omitempty"`
	Published   time.Time `json:"published,omitzero"`

	// FeedGUID and FeedTitle are embedded from the referenced feed.
	FeedGUID  string `json:"feedGuid,omitempty"`
	FeedTitle string `json:"feedTitle,omitempty"`

	// MediaURLs are embedded from referenced media records.
	MediaURLs []string `json:"mediaUrls,omitempty"`

	EncodingFormat string `json:"encodingFormat,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Transcript     string `json:"transcript,omitempty"`

	// FetchedAt is when the record's content was last fetched. Documents
	// depend only on the record, so re-syncing never changes them.
	FetchedAt time.Time `json:"fetchedAt"`
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// Kinds filters to specific record kinds.
	Kinds []RecordKind
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Document is the matched document.
	Document IndexDocument

	// Score is the relevance score.
	Score float64
}
