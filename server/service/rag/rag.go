// Package rag answers repository questions from previously ingested
// activity.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/store"
)

// Query categories drive how context is retrieved. Chronological questions
// ("what happened last week") read newest activity directly, everything else
// goes through vector similarity.
const (
	categorySemantic      = "semantic"
	categoryChronological = "chronological"
)

const defaultRetrievalLimit = 12

// AI is the slice of the provider the query service depends on.
type AI interface {
	Chat(ctx context.Context, messages []ai.Message) (string, error)
	ChatStream(ctx context.Context, messages []ai.Message, onChunk func(string) error) error
	ClassifyJSON(ctx context.Context, system, user string) (string, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Service retrieves context and generates grounded answers.
type Service struct {
	store *store.Store
	ai    AI
}

func NewService(st *store.Store, provider AI) *Service {
	return &Service{store: st, ai: provider}
}

const classifierPrompt = `Classify the user's question about a software repository.
Reply with a JSON object: {"category": "semantic"} for questions about topics,
bugs, features or people, or {"category": "chronological"} for questions about
recent activity or what happened in a time window.`

const answerSystemPrompt = `You are a software repository analyst. Answer the
user's question using only the provided repository context. When the context
does not contain the answer, say so instead of guessing. Answer in the
language the question was asked in.`

// Answer generates a grounded answer for the question.
func (s *Service) Answer(ctx context.Context, userEmail, repo, question string) (string, error) {
	messages, err := s.buildMessages(ctx, userEmail, repo, question)
	if err != nil {
		return "", err
	}
	return s.ai.Chat(ctx, messages)
}

// AnswerStream is Answer with incremental delivery.
func (s *Service) AnswerStream(ctx context.Context, userEmail, repo, question string, onChunk func(string) error) error {
	messages, err := s.buildMessages(ctx, userEmail, repo, question)
	if err != nil {
		return err
	}
	return s.ai.ChatStream(ctx, messages, onChunk)
}

func (s *Service) buildMessages(ctx context.Context, userEmail, repo, question string) ([]ai.Message, error) {
	docs, err := s.retrieve(ctx, userEmail, repo, question)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no ingested data for %s: ingest the repository first", repo)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n\n", repo)
	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] (%s, %s)\n%s\n\n", i+1, doc.Kind,
			time.Unix(doc.ItemCreatedTs, 0).UTC().Format("2006-01-02"), doc.Content)
	}

	return []ai.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", b.String(), question)},
	}, nil
}

// retrieve picks the retrieval strategy by query category. Classification
// failures fall back to semantic retrieval.
func (s *Service) retrieve(ctx context.Context, userEmail, repo, question string) ([]*store.Document, error) {
	category := categorySemantic
	if reply, err := s.ai.ClassifyJSON(ctx, classifierPrompt, question); err == nil {
		var parsed struct {
			Category string `json:"category"`
		}
		if err := ai.DecodeJSONReply(reply, &parsed); err == nil && parsed.Category == categoryChronological {
			category = categoryChronological
		}
	} else {
		slog.Warn("query classification failed, using semantic retrieval", "error", err)
	}

	if category == categoryChronological {
		limit := defaultRetrievalLimit
		return s.store.ListDocuments(ctx, &store.FindDocument{
			UserEmail:              &userEmail,
			Repo:                   &repo,
			Limit:                  &limit,
			OrderByItemCreatedDesc: true,
		})
	}

	embedding, err := s.ai.Embedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	scored, err := s.store.SearchDocumentsByVector(ctx, &store.VectorSearchOptions{
		UserEmail: userEmail,
		Repo:      repo,
		Embedding: embedding,
		Limit:     defaultRetrievalLimit,
	})
	if err != nil {
		return nil, err
	}
	docs := make([]*store.Document, 0, len(scored))
	for _, sc := range scored {
		docs = append(docs, sc.Document)
	}
	return docs, nil
}

const chatSystemPrompt = `You are a helpful assistant for a GitHub repository
analysis service. Keep replies short and conversational. You can ingest
repositories, answer questions about them, generate reports and schedule
recurring report emails.`

// Chat handles casual conversation without retrieval.
func (s *Service) Chat(ctx context.Context, history []ai.Message, message string) (string, error) {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: "system", Content: chatSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: "user", Content: message})
	return s.ai.Chat(ctx, messages)
}
