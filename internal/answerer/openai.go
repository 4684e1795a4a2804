package answerer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"deepnotes/internal/domain"
	"deepnotes/internal/service"
)

const systemPrompt = "You answer questions about the user's documents. Use only the numbered excerpts provided. " +
	"Cite excerpts as [n]. If the excerpts do not contain the answer, say so."

// Retriever finds the passages of the selected documents relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, documentIDs []string) ([]service.Passage, error)
}

// OpenAIConfig configures the chat completion answerer.
type OpenAIConfig struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// OpenAI answers from retrieved passages with an OpenAI-compatible chat model.
// Citations and confidence come from retrieval, not from the model.
type OpenAI struct {
	client    *goopenai.Client
	cfg       OpenAIConfig
	retriever Retriever
	log       *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, retriever Retriever, log *zap.Logger) (*OpenAI, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if log == nil {
		log = zap.NewNop()
	}
	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAI{
		client:    goopenai.NewClientWithConfig(oc),
		cfg:       cfg,
		retriever: retriever,
		log:       log.Named("answerer.openai"),
	}, nil
}

func (a *OpenAI) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResponse, error) {
	passages, err := a.retriever.Retrieve(ctx, req.Question, req.DocumentIDs)
	if err != nil {
		return domain.AnswerResponse{}, err
	}
	if len(passages) == 0 {
		return domain.AnswerResponse{Text: service.NoMatchMessage, Confidence: domain.ConfidenceLow}, nil
	}
	resp, err := a.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt(req.Question, passages)},
		},
	})
	if err != nil {
		return domain.AnswerResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnswerResponse{}, errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return domain.AnswerResponse{}, errors.New("chat completion returned an empty answer")
	}
	a.log.Debug("answered",
		zap.String("model", resp.Model),
		zap.Int("passages", len(passages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	citations := make([]domain.Citation, len(passages))
	for i, p := range passages {
		citations[i] = service.CitationFor(p, service.BestSentence(p.Chunk.Text, req.Question))
	}
	return domain.AnswerResponse{
		Text:       text,
		Citations:  citations,
		Confidence: service.Grade(passages[0].Score),
	}, nil
}

func prompt(question string, passages []service.Passage) string {
	var b strings.Builder
	b.WriteString("Excerpts:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s", i+1, p.Document.Name)
		if p.Chunk.Page > 0 {
			fmt.Fprintf(&b, ", page %d", p.Chunk.Page)
		}
		fmt.Fprintf(&b, ":\n%s\n\n", p.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
