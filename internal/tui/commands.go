package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"deepnotes/internal/conversation"
	"deepnotes/internal/ingest"
)

type answeredMsg struct{ outcome conversation.Outcome }

type uploadedMsg struct {
	result ingest.Result
	err    error
}

type exportedMsg struct {
	path string
	err  error
}

type pollMsg struct{}

func resolve(ctx context.Context, cancel context.CancelFunc, ex *conversation.Exchange) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		return answeredMsg{outcome: ex.Resolve(ctx)}
	}
}

func (m *Model) uploadFiles(patterns []string) tea.Cmd {
	ctx, ws := m.ctx, m.ws
	return func() tea.Msg {
		blobs, err := ingest.ReadFiles(patterns)
		if err != nil {
			return uploadedMsg{err: err}
		}
		res, err := ws.UploadFiles(ctx, blobs)
		return uploadedMsg{result: res, err: err}
	}
}

func (m *Model) uploadLink(rawURL string) tea.Cmd {
	ctx, ws := m.ctx, m.ws
	return func() tea.Msg {
		res, err := ws.UploadLink(ctx, rawURL)
		return uploadedMsg{result: res, err: err}
	}
}

func (m *Model) export() tea.Cmd {
	ws := m.ws
	path := filepath.Join(m.opts.ExportDir, "deepnotes-transcript-"+time.Now().Format("20060102-150405")+".md")
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		if err := ws.ExportTranscript(f); err != nil {
			f.Close()
			return exportedMsg{err: fmt.Errorf("write transcript: %w", err)}
		}
		return exportedMsg{path: path, err: f.Close()}
	}
}

// poll schedules one upload progress refresh unless one is pending.
func (m *Model) poll() tea.Cmd {
	if m.polling {
		return nil
	}
	m.polling = true
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}
