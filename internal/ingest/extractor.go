package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/mail"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"deepnotes/internal/domain"
)

// ExtractorConfig configures the local ingestion collaborator.
type ExtractorConfig struct {
	FetchTimeout  time.Duration
	MaxFetchBytes int64
	UserAgent     string
}

// LocalExtractor pulls text out of uploaded files and fetched links without
// any remote service.
type LocalExtractor struct {
	client    *http.Client
	maxFetch  int64
	userAgent string
	log       *zap.Logger
}

func NewLocalExtractor(cfg ExtractorConfig, log *zap.Logger) *LocalExtractor {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxFetchBytes == 0 {
		cfg.MaxFetchBytes = 20 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "deepnotes/1.0"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalExtractor{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		maxFetch:  cfg.MaxFetchBytes,
		userAgent: cfg.UserAgent,
		log:       log.Named("extract"),
	}
}

func (e *LocalExtractor) ExtractFile(_ context.Context, blob domain.Blob) (domain.Content, error) {
	title := strings.TrimSuffix(filepath.Base(blob.Name), filepath.Ext(blob.Name))
	switch strings.ToLower(filepath.Ext(blob.Name)) {
	case ".pdf":
		pages, err := pdfPages(blob.Data)
		if err != nil {
			return domain.Content{}, err
		}
		return domain.Content{Title: title, Pages: pages}, nil
	case ".docx":
		text, err := docxText(blob.Data)
		if err != nil {
			return domain.Content{}, err
		}
		return domain.Content{Title: title, Pages: []string{text}}, nil
	case ".eml":
		if c, err := emailContent(blob.Data); err == nil {
			return c, nil
		}
	}
	return domain.Content{Title: title, Pages: []string{plainText(blob.Data)}}, nil
}

func (e *LocalExtractor) ExtractLink(ctx context.Context, rawURL string) (domain.Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Content{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Content{}, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return domain.Content{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.Content{}, fmt.Errorf("GET %s failed: %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxFetch))
	if err != nil {
		return domain.Content{}, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	e.log.Debug("link fetched", zap.String("url", rawURL), zap.String("type", mediaType), zap.Int("bytes", len(body)))
	switch {
	case mediaType == "application/pdf" || strings.HasSuffix(strings.ToLower(u.Path), ".pdf"):
		pages, err := pdfPages(body)
		if err != nil {
			return domain.Content{}, err
		}
		return domain.Content{Title: filepath.Base(u.Path), Pages: pages}, nil
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || mediaType == "":
		article, err := readability.FromReader(bytes.NewReader(body), u)
		if err != nil {
			return domain.Content{}, fmt.Errorf("parse html: %w", err)
		}
		return domain.Content{Title: article.Title, Pages: []string{strings.TrimSpace(article.TextContent)}}, nil
	default:
		return domain.Content{Title: filepath.Base(u.Path), Pages: []string{plainText(body)}}, nil
	}
}

func pdfPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// docxText reads the paragraphs of word/document.xml.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		var sb strings.Builder
		dec := xml.NewDecoder(rc)
		inText := false
		for {
			tok, err := dec.Token()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read docx: %w", err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				inText = t.Name.Local == "t"
			case xml.EndElement:
				if t.Name.Local == "p" {
					sb.WriteString("\n")
				}
				inText = false
			case xml.CharData:
				if inText {
					sb.Write(t)
				}
			}
		}
		return strings.TrimSpace(sb.String()), nil
	}
	return "", errors.New("docx has no word/document.xml")
}

func emailContent(data []byte) (domain.Content, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return domain.Content{}, err
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return domain.Content{}, err
	}
	return domain.Content{Title: msg.Header.Get("Subject"), Pages: []string{plainText(body)}}, nil
}

func plainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}
