package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokensKeepApostrophes(t *testing.T) {
	assert.Equal(t, []string{"company's", "revenue", "grew"}, Tokens("Company's REVENUE grew!"))
}

func TestOchiai(t *testing.T) {
	q := TokenSet("revenue growth")
	assert.InDelta(t, 1.0, Ochiai(q, "growth revenue"), 1e-9)
	assert.InDelta(t, 0.5, Ochiai(q, "revenue fell"), 1e-9)
	assert.Zero(t, Ochiai(q, ""))
	assert.Zero(t, Ochiai(map[string]struct{}{}, "revenue"))
}

func TestBestSentence(t *testing.T) {
	sentences := []string{"Costs rose.", "Revenue grew by 23%.", "Staff stayed flat."}
	assert.Equal(t, 1, BestSentence(sentences, "what was the revenue"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short ", 10))
	assert.Equal(t, "Executive…", Truncate("Executive Summary", 10))
}
