package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"deepnotes/internal/conversation"
	"deepnotes/internal/domain"
	"deepnotes/internal/ingest"
)

// Workspace is the TUI-facing subset of the session controller.
type Workspace interface {
	UploadFiles(ctx context.Context, blobs []domain.Blob) (ingest.Result, error)
	UploadLink(ctx context.Context, rawURL string) (ingest.Result, error)
	ToggleDocument(id string)
	ToggleAll()
	RemoveDocument(id string)
	BeginAsk(question string) (*conversation.Exchange, error)
	Documents() []domain.Document
	IsSelected(id string) bool
	Selected() []string
	History() []domain.Turn
	Upload() domain.UploadJob
	InFlight() bool
	Status() string
	Insights(id string) (domain.Insights, error)
	ExportTranscript(w io.Writer) error
}

// Options configure the terminal UI.
type Options struct {
	// ExportDir receives exported transcripts. Empty means the working directory.
	ExportDir string
	// PollInterval is how often upload progress is refreshed.
	PollInterval time.Duration
}

type focus int

const (
	focusChat focus = iota
	focusSources
)

type inputMode int

const (
	modeAsk inputMode = iota
	modeFile
	modeLink
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	ws        Workspace
	opts      Options
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	progress  progress.Model
	focus     focus
	mode      inputMode
	cursor    int
	insights  *domain.Insights
	status    string
	cancelAsk context.CancelFunc
	polling   bool
	width     int
	height    int
	ready     bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, ws Workspace, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	ti := textinput.New()
	ti.CharLimit = 0
	ti.Focus()
	m := Model{
		ctx:      ctx,
		ws:       ws,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		progress: progress.New(progress.WithDefaultGradient()),
		// Init schedules the first tick
		polling: true,
	}
	m.setMode(modeAsk)
	return m
}

// Init initializes the model (text input cursor blink, upload polling).
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancelAsk != nil {
				m.cancelAsk()
			}
			return m, tea.Quit
		}
		if cmd, handled := m.handleKey(msg); handled {
			m.refresh()
			return m, cmd
		}

	case answeredMsg:
		m.cancelAsk = nil
		switch msg.outcome.State {
		case conversation.StateFailed:
			m.status = "Could not answer: " + msg.outcome.Err.Error() + " (press enter on an empty prompt to retry)"
		case conversation.StateCancelled:
			m.status = "Question cancelled"
		default:
			m.status = ""
		}
		m.refresh()
		return m, nil

	case uploadedMsg:
		switch {
		case errors.Is(msg.err, ingest.ErrUploadInProgress):
			m.status = "An upload is already running"
		case msg.err != nil:
			m.status = "Upload failed: " + msg.err.Error()
		case !msg.result.Succeeded():
			m.status = "Upload failed: " + msg.result.Err.Error()
		default:
			m.status = fmt.Sprintf("Uploaded %d document(s)", len(msg.result.Documents))
		}
		m.refresh()
		return m, m.poll()

	case exportedMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Transcript saved to " + msg.path
		}
		return m, nil

	case pollMsg:
		m.polling = false
		m.refresh()
		// a failed job stays on screen until the next upload, nothing to watch
		if s := m.ws.Upload().Status; s == domain.UploadRunning || s == domain.UploadSucceeded {
			return m, m.poll()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ws.InFlight() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.focus == focusChat {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "tab":
		m.toggleFocus()
		return nil, true
	case "esc":
		switch {
		case m.cancelAsk != nil:
			m.cancelAsk()
		case m.insights != nil:
			m.insights = nil
		case m.mode != modeAsk:
			m.setMode(modeAsk)
		}
		return nil, true
	case "ctrl+o":
		m.setMode(modeFile)
		return nil, true
	case "ctrl+l":
		m.setMode(modeLink)
		return nil, true
	case "ctrl+e":
		return m.export(), true
	case "ctrl+a":
		m.ws.ToggleAll()
		return nil, true
	}
	if m.focus == focusSources {
		return m.handleSourcesKey(msg)
	}
	if msg.Type == tea.KeyEnter {
		return m.submit(), true
	}
	return nil, false
}

func (m *Model) handleSourcesKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	docs := m.ws.Documents()
	switch msg.String() {
	case "up", "k":
		if len(docs) > 0 {
			m.cursor = (m.cursor - 1 + len(docs)) % len(docs)
		}
	case "down", "j":
		if len(docs) > 0 {
			m.cursor = (m.cursor + 1) % len(docs)
		}
	case " ", "space", "enter":
		if d, ok := m.current(docs); ok {
			m.ws.ToggleDocument(d.ID)
		}
	case "a":
		m.ws.ToggleAll()
	case "x", "delete":
		if d, ok := m.current(docs); ok {
			m.ws.RemoveDocument(d.ID)
			m.status = "Removed " + d.Name
			if m.insights != nil && m.insights.Document.ID == d.ID {
				m.insights = nil
			}
		}
	case "i":
		if d, ok := m.current(docs); ok {
			in, err := m.ws.Insights(d.ID)
			if err != nil {
				m.status = "No insights for " + d.Name + ": " + err.Error()
			} else {
				m.insights = &in
			}
		}
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) current(docs []domain.Document) (domain.Document, bool) {
	if len(docs) == 0 {
		return domain.Document{}, false
	}
	m.cursor = min(max(m.cursor, 0), len(docs)-1)
	return docs[m.cursor], true
}

func (m *Model) toggleFocus() {
	if m.focus == focusChat {
		m.focus = focusSources
		m.input.Blur()
		return
	}
	m.focus = focusChat
	m.input.Focus()
}

func (m *Model) setMode(mode inputMode) {
	m.mode = mode
	m.input.Reset()
	switch mode {
	case modeFile:
		m.input.Prompt = "file> "
		m.input.Placeholder = "Paths or globs of PDF, Word or email files"
	case modeLink:
		m.input.Prompt = "link> "
		m.input.Placeholder = "https://example.com/report.pdf"
	default:
		m.input.Prompt = "> "
		m.input.Placeholder = "Ask a question about your documents"
	}
	if m.focus != focusChat {
		m.toggleFocus()
	}
}

func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	switch m.mode {
	case modeFile:
		if value == "" {
			return nil
		}
		m.setMode(modeAsk)
		m.status = "Uploading..."
		return tea.Batch(m.uploadFiles(strings.Fields(value)), m.poll())
	case modeLink:
		if value == "" {
			return nil
		}
		m.setMode(modeAsk)
		m.status = "Fetching link..."
		return tea.Batch(m.uploadLink(value), m.poll())
	}
	if value == "" {
		value = m.retryQuestion()
	}
	ex, err := m.ws.BeginAsk(value)
	switch {
	case errors.Is(err, conversation.ErrEmptyQuestion):
		return nil
	case errors.Is(err, conversation.ErrBusy):
		m.status = "Still analyzing the previous question"
		return nil
	case err != nil:
		m.status = err.Error()
		return nil
	}
	m.input.Reset()
	m.status = ""
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelAsk = cancel
	return tea.Batch(m.spinner.Tick, resolve(ctx, cancel, ex))
}

// retryQuestion returns the last question if it went unanswered.
func (m *Model) retryQuestion() string {
	history := m.ws.History()
	if n := len(history); n > 0 && history[n-1].Role == domain.RoleUser {
		return history[n-1].Text
	}
	return ""
}

// refresh re-renders the scrollable pane after state changes.
func (m *Model) refresh() {
	if docs := m.ws.Documents(); m.cursor >= len(docs) {
		m.cursor = max(len(docs)-1, 0)
	}
	if !m.ready {
		return
	}
	if m.insights != nil {
		m.viewport.SetContent(renderInsights(*m.insights, m.viewport.Width))
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(renderChat(m.ws.History(), m.viewport.Width))
	m.viewport.GotoBottom()
}
