package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"deepnotes/internal/domain"
)

// LinkFallbackName names link documents whose URL has no path segment.
const LinkFallbackName = "Document from link"

var ErrInvalidLink = errors.New("link must be an absolute http(s) URL")

// InferKind classifies a file by its name suffix. Anything that is not a PDF
// or a Word document is reported as email.
func InferKind(filename string) domain.Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.KindPDF
	case ".docx", ".doc":
		return domain.KindWordDocument
	default:
		return domain.KindEmail
	}
}

// LinkName returns the display name of a link upload: its final path segment.
func LinkName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid link %q: %w", rawURL, ErrInvalidLink)
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return LinkFallbackName, nil
	}
	last := trimmed[strings.LastIndex(trimmed, "/")+1:]
	return last, nil
}
