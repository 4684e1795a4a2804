package domain

import (
	"strings"
	"time"
)

// Kind classifies an ingested document.
type Kind string

const (
	KindPDF          Kind = "pdf"
	KindWordDocument Kind = "word-document"
	KindEmail        Kind = "email"
)

// Document is a committed, immutable record of an ingested file or link.
type Document struct {
	ID         string
	Name       string
	Kind       Kind
	UploadedAt time.Time
	// SizeBytes is zero when the size is unknown (link uploads).
	SizeBytes int64
}

// Blob is a raw file upload.
type Blob struct {
	Name string
	Data []byte
}

// Content is the text extracted from a document, one entry per page.
// Sources without pagination carry a single page.
type Content struct {
	Title string
	Pages []string
}

// Text joins all pages.
func (c Content) Text() string { return strings.Join(c.Pages, "\n") }

// Confidence is the coarse reliability grade of an assistant reply.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	// ConfidenceNone marks a reply produced without any selected document.
	ConfidenceNone Confidence = "none"
)

// Citation points from an assistant reply back to a source location.
type Citation struct {
	Label      string
	SourceName string
	// Page is 1-based; 0 means no page.
	Page int
}

// HasPage reports whether the citation carries a page number.
func (c Citation) HasPage() bool { return c.Page > 0 }

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the append-only conversation history.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time

	// Assistant turns only.
	Citations  []Citation
	Confidence Confidence
}

// UploadStatus is the lifecycle state of an upload job.
type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadRunning   UploadStatus = "running"
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

// UploadJob is a snapshot of the active (or last) ingestion job.
type UploadJob struct {
	ID       string
	Progress int
	Status   UploadStatus
	Err      error
}

// Active reports whether the job indicator should be shown.
func (j UploadJob) Active() bool { return j.Status != UploadIdle }

// Insights summarizes a single document for the sources panel.
type Insights struct {
	Document   Document
	Summary    string
	Highlights []PageHighlight
	Topics     []Topic
}

// PageHighlight is a ranked sentence located on a page of its document.
type PageHighlight struct {
	Sentence   string
	Page       int
	Confidence Confidence
}
