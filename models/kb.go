package models

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeBase groups uploaded documents and their derived markdown
type KnowledgeBase struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is an uploaded file stored as raw bytes. Content is omitted from
// listings and returned only by the download endpoint.
type Document struct {
	ID        uuid.UUID `json:"id"`
	KBID      uuid.UUID `json:"kb_id"`
	Filename  string    `json:"filename"`
	Suffix    string    `json:"suffix"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MarkdownFile is the converted text of a document plus an optional summary
type MarkdownFile struct {
	ID        uuid.UUID `json:"id"`
	DocID     uuid.UUID `json:"doc_id"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
