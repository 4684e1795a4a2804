package answerer

import (
	"context"
	"fmt"
	"time"

	"deepnotes/internal/domain"
)

// DefaultSimulatedDelay is how long the simulated answerer pretends to think.
const DefaultSimulatedDelay = 1500 * time.Millisecond

// Simulated answers every question with fixed, question-echoing content.
// It stands in for a real backend in demos and tests.
type Simulated struct {
	Delay time.Duration
}

func NewSimulated(delay time.Duration) *Simulated {
	if delay < 0 {
		delay = 0
	}
	return &Simulated{Delay: delay}
}

func (s *Simulated) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResponse, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return domain.AnswerResponse{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return domain.AnswerResponse{}, err
	}
	return domain.AnswerResponse{
		Text: fmt.Sprintf("Based on the uploaded document, here's what I found regarding %q. "+
			"The document contains relevant information that directly addresses your question with specific details and context.", req.Question),
		Citations: []domain.Citation{
			{Label: "Section 2.1", SourceName: "Document Analysis", Page: 15},
			{Label: "Executive Summary", SourceName: "Key Findings", Page: 3},
		},
		Confidence: domain.ConfidenceHigh,
	}, nil
}
