package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepnotes/internal/domain"
)

func TestExtractPlainAndEmail(t *testing.T) {
	ex := NewLocalExtractor(ExtractorConfig{}, nil)

	c, err := ex.ExtractFile(context.Background(), domain.Blob{Name: "memo.txt", Data: []byte("Revenue grew.")})
	require.NoError(t, err)
	assert.Equal(t, "memo", c.Title)
	assert.Equal(t, []string{"Revenue grew."}, c.Pages)

	eml := "Subject: Quarterly update\r\nFrom: a@example.com\r\n\r\nRevenue grew by 23%.\r\n"
	c, err = ex.ExtractFile(context.Background(), domain.Blob{Name: "update.eml", Data: []byte(eml)})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly update", c.Title)
	assert.Contains(t, c.Text(), "Revenue grew by 23%.")
}

func TestExtractDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ex := NewLocalExtractor(ExtractorConfig{}, nil)
	c, err := ex.ExtractFile(context.Background(), domain.Blob{Name: "notes.docx", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", c.Text())
}

func TestExtractBrokenPDFFails(t *testing.T) {
	ex := NewLocalExtractor(ExtractorConfig{}, nil)
	_, err := ex.ExtractFile(context.Background(), domain.Blob{Name: "broken.pdf", Data: []byte("not a pdf")})
	assert.Error(t, err)
}

func TestExtractLinkPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Plain body text."))
	}))
	defer srv.Close()

	ex := NewLocalExtractor(ExtractorConfig{}, nil)
	c, err := ex.ExtractLink(context.Background(), srv.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "Plain body text.", c.Text())

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	_, err = ex.ExtractLink(context.Background(), missing.URL+"/gone")
	assert.Error(t, err)
}
