package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"deepnotes/internal/answerer"
	"deepnotes/internal/chunker"
	"deepnotes/internal/config"
	"deepnotes/internal/domain"
	"deepnotes/internal/embedding/openai"
	"deepnotes/internal/embedding/tfidf"
	"deepnotes/internal/service"
	"deepnotes/internal/summarizer"
	"deepnotes/internal/vectorstore/memory"
	"deepnotes/internal/vectorstore/qdrant"
)

// buildIndex assembles the retrieval index that receives committed content.
func buildIndex(cfg *config.AppConfig, log *zap.Logger) (*service.RAGService, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var st domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		st = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	return service.NewRAGService(ch, emb, st, sum, service.Options{
		TopK:                cfg.Answerer.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Highlights:          cfg.Summarizer.Highlights,
		Topics:              cfg.Summarizer.Topics,
	}, log), nil
}

func buildAnswerer(cfg *config.AppConfig, index *service.RAGService, log *zap.Logger) (domain.Answerer, error) {
	switch cfg.Answerer.Type {
	case "local", "":
		return index, nil
	case "simulated":
		return answerer.NewSimulated(time.Duration(cfg.Answerer.DelayMilli) * time.Millisecond), nil
	case "openai":
		oc := cfg.Answerer.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("openai answerer config missing")
		}
		a, err := answerer.NewOpenAI(answerer.OpenAIConfig{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
			MaxTokens:   oc.MaxTokens,
			Temperature: oc.Temperature,
		}, index, log)
		if err != nil {
			return nil, fmt.Errorf("openai answerer init failed: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown answerer: %s", cfg.Answerer.Type)
	}
}
