package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"deepnotes/internal/domain"
	"deepnotes/internal/session"
	"deepnotes/internal/textutil"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activePanel    = panelStyle.BorderForeground(lipgloss.Color("12"))
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	badgeStyles = map[domain.Confidence]lipgloss.Style{
		domain.ConfidenceHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Padding(0, 1),
		domain.ConfidenceMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1),
		domain.ConfidenceLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Padding(0, 1),
	}
)

const helpLine = "tab sources/chat · space select · a all · x remove · i insights · ctrl+o files · ctrl+l link · ctrl+e export · esc cancel"

// layout sizes the panes from the last window size.
func (m *Model) layout() {
	sourcesW := max(28, m.width/3)
	chatW := max(20, m.width-sourcesW-panelStyle.GetHorizontalFrameSize()*2)
	_, ph := panelStyle.GetFrameSize()
	_, qh := queryBoxStyle.GetFrameSize()
	reserved := 2 + 2 + qh + 1 + ph // header, status and help, query box, input line
	m.viewport.Width = chatW
	m.viewport.Height = max(3, m.height-reserved)
	m.input.Width = max(10, m.width-queryBoxStyle.GetHorizontalFrameSize()-len(m.input.Prompt)-1)
	m.progress.Width = max(10, sourcesW-4)
	m.refresh()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Deepnotes") + "  " + m.headerStatus()

	sources, chat := panelStyle, panelStyle
	if m.focus == focusSources {
		sources = activePanel
	} else {
		chat = activePanel
	}
	sourcesW := max(28, m.width/3) - panelStyle.GetHorizontalFrameSize()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sources.Width(sourcesW).Height(m.viewport.Height).Render(m.renderSources(sourcesW)),
		chat.Render(m.viewport.View()),
	)
	input := queryBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if strings.Contains(strings.ToLower(m.status), "fail") {
		status = errorStyle.Render(m.status)
	}
	return strings.Join([]string{header, body, input, status, mutedStyle.Render(helpLine)}, "\n")
}

func (m Model) headerStatus() string {
	if m.ws.InFlight() {
		return m.spinner.View() + " " + session.StatusAnalyzing
	}
	return mutedStyle.Render(m.ws.Status())
}

func (m Model) renderSources(width int) string {
	docs := m.ws.Documents()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sources"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s · %d selected", session.CountLine(len(docs)), len(m.ws.Selected()))))
	b.WriteString("\n\n")
	if len(docs) == 0 {
		b.WriteString(mutedStyle.Render("Press ctrl+o to add files\nor ctrl+l to add a link."))
		b.WriteString("\n")
	}
	for i, d := range docs {
		mark := "[ ]"
		if m.ws.IsSelected(d.ID) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, textutil.Truncate(d.Name, max(8, width-6)))
		if i == m.cursor && m.focus == focusSources {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("      %s · %s · %s", d.Kind, session.FormatSize(d.SizeBytes), d.UploadedAt.Format("Jan 2 15:04"))))
		b.WriteString("\n")
	}
	if job := m.ws.Upload(); job.Active() {
		b.WriteString("\n")
		b.WriteString(renderUpload(job, m.progress.ViewAs(float64(job.Progress)/100)))
	}
	return b.String()
}

func renderUpload(job domain.UploadJob, bar string) string {
	switch job.Status {
	case domain.UploadRunning:
		return fmt.Sprintf("Uploading... %d%%\n%s", job.Progress, bar)
	case domain.UploadSucceeded:
		return "Upload complete\n" + bar
	case domain.UploadFailed:
		msg := "Upload failed"
		if job.Err != nil {
			msg += ": " + job.Err.Error()
		}
		return errorStyle.Render(msg)
	}
	return ""
}

func renderChat(turns []domain.Turn, width int) string {
	if len(turns) == 0 {
		return mutedStyle.Render("Select documents on the left, then ask a question below.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width))
	var b strings.Builder
	lastQuestion := ""
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		if t.Role == domain.RoleUser {
			lastQuestion = t.Text
			b.WriteString(userStyle.Render("You") + mutedStyle.Render(" "+t.CreatedAt.Format("15:04")))
			b.WriteString("\n")
			b.WriteString(wrap.Render(t.Text))
			b.WriteString("\n")
			continue
		}
		b.WriteString(assistantStyle.Render("Assistant") + mutedStyle.Render(" "+t.CreatedAt.Format("15:04")))
		if badge, ok := badgeStyles[t.Confidence]; ok {
			b.WriteString(" " + badge.Render(string(t.Confidence)+" confidence"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(highlightBestSentence(t.Text, lastQuestion)))
		b.WriteString("\n")
		for _, c := range t.Citations {
			b.WriteString(mutedStyle.Render("  ↳ " + session.CitationText(c)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderInsights(in domain.Insights, width int) string {
	wrap := lipgloss.NewStyle().Width(max(10, width))
	var b strings.Builder
	b.WriteString(titleStyle.Render("Insights · " + in.Document.Name))
	b.WriteString("\n\n")
	if in.Summary != "" {
		b.WriteString(wrap.Render(in.Summary))
		b.WriteString("\n\n")
	}
	b.WriteString(titleStyle.Render("Highlights"))
	b.WriteString("\n")
	for _, h := range in.Highlights {
		loc := ""
		if h.Page > 0 {
			loc = fmt.Sprintf(" (p. %d)", h.Page)
		}
		line := "• " + h.Sentence + loc
		if badge, ok := badgeStyles[h.Confidence]; ok {
			line += " " + badge.Render(string(h.Confidence))
		}
		b.WriteString(wrap.Render(line))
		b.WriteString("\n")
	}
	if len(in.Topics) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Topics"))
		b.WriteString("\n")
		terms := make([]string, len(in.Topics))
		for i, t := range in.Topics {
			terms[i] = fmt.Sprintf("%s (%d)", t.Term, t.Occurrences)
		}
		b.WriteString(wrap.Render(strings.Join(terms, " · ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("esc to return to the conversation"))
	return b.String()
}

// highlightBestSentence emphasizes the sentence sharing most words with
// query and leaves the rest of text untouched.
func highlightBestSentence(text, query string) string {
	locs := textutil.SentencePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 || len(textutil.TokenSet(query)) == 0 {
		return text
	}
	sentences := make([]string, len(locs))
	for i, loc := range locs {
		sentences[i] = text[loc[0]:loc[1]]
	}
	best := textutil.BestSentence(sentences, query)
	sent := strings.TrimSpace(sentences[best])
	start := locs[best][0] + strings.Index(sentences[best], sent)
	return text[:start] + highlightStyle.Render(sent) + text[start+len(sent):]
}
