package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepnotes/internal/domain"
)

func TestInferKind(t *testing.T) {
	cases := map[string]domain.Kind{
		"report.pdf":      domain.KindPDF,
		"REPORT.PDF":      domain.KindPDF,
		"notes.docx":      domain.KindWordDocument,
		"legacy.doc":      domain.KindWordDocument,
		"memo.txt":        domain.KindEmail,
		"inbox.eml":       domain.KindEmail,
		"no-suffix":       domain.KindEmail,
		"archive.pdf.zip": domain.KindEmail,
	}
	for name, want := range cases {
		assert.Equal(t, want, InferKind(name), name)
	}
}

func TestLinkName(t *testing.T) {
	cases := map[string]string{
		"https://example.com/files/report.pdf": "report.pdf",
		"https://example.com/files/":           "files",
		"https://example.com":                  LinkFallbackName,
		"https://example.com/":                 LinkFallbackName,
		"http://example.com/a?b=c":             "a",
	}
	for in, want := range cases {
		got, err := LinkName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "ftp://example.com/x", "/relative/path", "::"} {
		_, err := LinkName(bad)
		assert.Error(t, err, bad)
	}
}
