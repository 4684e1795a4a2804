package session

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"deepnotes/internal/domain"
)

// FormatSize renders a document size for people. Unknown sizes render as "-".
func FormatSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// CountLine is the summary shown under the sources list.
func CountLine(n int) string {
	if n == 1 {
		return "1 document uploaded"
	}
	return fmt.Sprintf("%s documents uploaded", humanize.Comma(int64(n)))
}

// CitationText renders a citation as "Label (Source, p. N)".
func CitationText(c domain.Citation) string {
	if c.HasPage() {
		return fmt.Sprintf("%s (%s, p. %d)", c.Label, c.SourceName, c.Page)
	}
	return fmt.Sprintf("%s (%s)", c.Label, c.SourceName)
}

// ExportTranscript writes the sources and conversation as Markdown.
func (c *Controller) ExportTranscript(w io.Writer) error {
	now := c.now()
	docs := c.Documents()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Conversation transcript\n\nExported %s. %s, %d selected.\n\n",
		now.Format("2006-01-02 15:04"), CountLine(len(docs)), len(c.Selected()))

	if len(docs) > 0 {
		bw.WriteString("## Sources\n\n")
		for _, d := range docs {
			mark := " "
			if c.IsSelected(d.ID) {
				mark = "x"
			}
			fmt.Fprintf(bw, "- [%s] %s (%s, %s, uploaded %s)\n", mark, d.Name, d.Kind,
				FormatSize(d.SizeBytes), humanize.RelTime(d.UploadedAt, now, "ago", "from now"))
		}
		bw.WriteString("\n")
	}

	bw.WriteString("## Conversation\n")
	history := c.History()
	if len(history) == 0 {
		bw.WriteString("\nNo questions asked yet.\n")
	}
	for _, t := range history {
		writeTurn(bw, t)
	}
	return bw.Flush()
}

func writeTurn(w *bufio.Writer, t domain.Turn) {
	author := "You"
	if t.Role == domain.RoleAssistant {
		author = "Assistant"
	}
	fmt.Fprintf(w, "\n**%s** · %s", author, t.CreatedAt.Format(time.Kitchen))
	if t.Role == domain.RoleAssistant && t.Confidence != "" && t.Confidence != domain.ConfidenceNone {
		fmt.Fprintf(w, " · confidence: %s", t.Confidence)
	}
	w.WriteString("\n\n")
	w.WriteString(strings.TrimSpace(t.Text))
	w.WriteString("\n")
	if len(t.Citations) == 0 {
		return
	}
	w.WriteString("\nSources:\n\n")
	for _, cit := range t.Citations {
		fmt.Fprintf(w, "- %s\n", CitationText(cit))
	}
}
