package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    "file:" + t.TempDir() + "/test.db",
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	doc := &store.Document{
		UserEmail: "alice@example.com",
		Repo:      "acme/widgets",
		Kind:      "issue",
		SourceID:  "42",
		Title:     "Crash on startup",
		Content:   "Issue #42: Crash on startup",
		CreatedTs: time.Now().Unix(),
		Embedding: []float32{1, 0, 0},
	}
	created, err := st.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// Upserting the same source item again must not create a second row.
	doc.Title = "Crash on startup (still broken)"
	_, err = st.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	userEmail, repo := "alice@example.com", "acme/widgets"
	list, err := st.ListDocuments(ctx, &store.FindDocument{UserEmail: &userEmail, Repo: &repo})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Crash on startup (still broken)", list[0].Title)

	deleted, err := st.DeleteDocuments(ctx, userEmail, repo)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func TestVectorSearchScopedToUserAndRepo(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seed := []struct {
		userEmail string
		repo      string
		sourceID  string
		embedding []float32
	}{
		{"alice@example.com", "acme/widgets", "1", []float32{1, 0, 0}},
		{"alice@example.com", "acme/widgets", "2", []float32{0, 1, 0}},
		{"alice@example.com", "acme/other", "3", []float32{1, 0, 0}},
		{"bob@example.com", "acme/widgets", "4", []float32{1, 0, 0}},
	}
	for _, s := range seed {
		_, err := st.UpsertDocument(ctx, &store.Document{
			UserEmail: s.userEmail,
			Repo:      s.repo,
			Kind:      "issue",
			SourceID:  s.sourceID,
			Content:   "doc " + s.sourceID,
			CreatedTs: time.Now().Unix(),
			Embedding: s.embedding,
		})
		require.NoError(t, err)
	}

	results, err := st.SearchDocumentsByVector(ctx, &store.VectorSearchOptions{
		UserEmail: "alice@example.com",
		Repo:      "acme/widgets",
		Embedding: []float32{1, 0, 0},
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Best match first; other users and repos never leak in.
	require.Equal(t, "1", results[0].Document.SourceID)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestIngestState(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	state, err := st.GetIngestState(ctx, "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.Nil(t, state)

	require.NoError(t, st.UpsertIngestState(ctx, &store.IngestState{
		UserEmail:    "alice@example.com",
		Repo:         "acme/widgets",
		LastPulledTs: 1000,
	}))
	require.NoError(t, st.UpsertIngestState(ctx, &store.IngestState{
		UserEmail:    "alice@example.com",
		Repo:         "acme/widgets",
		LastPulledTs: 2000,
	}))

	state, err = st.GetIngestState(ctx, "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.EqualValues(t, 2000, state.LastPulledTs)
}

func TestScheduleLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateSchedule(ctx, &store.Schedule{
		UID:              "sched-1",
		UserEmail:        "alice@example.com",
		Repo:             "acme/widgets",
		Prompt:           "weekly activity summary",
		Frequency:        store.FrequencyWeekly,
		TimeLocal:        "09:00",
		Timezone:         "America/Sao_Paulo",
		TimeUTC:          "12:00",
		DestinationEmail: "alice@example.com",
		Active:           false,
		CreatedTs:        time.Now().Unix(),
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	active := true
	updated, err := st.UpdateSchedule(ctx, &store.UpdateSchedule{ID: created.ID, Active: &active})
	require.NoError(t, err)
	require.True(t, updated.Active)

	timeUTC := "12:00"
	due, err := st.ListSchedules(ctx, &store.FindSchedule{Active: &active, TimeUTC: &timeUTC})
	require.NoError(t, err)
	require.Len(t, due, 1)

	lastSent := "2026-03-14"
	updated, err = st.UpdateSchedule(ctx, &store.UpdateSchedule{ID: created.ID, LastSentDate: &lastSent})
	require.NoError(t, err)
	require.Equal(t, lastSent, updated.LastSentDate)

	require.NoError(t, st.DeleteSchedule(ctx, &store.DeleteSchedule{ID: created.ID}))
	require.Error(t, st.DeleteSchedule(ctx, &store.DeleteSchedule{ID: created.ID}))
}

func TestVerifiedEmailFlow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	ve, err := st.UpsertVerifiedEmail(ctx, &store.VerifiedEmail{
		Email:     "dest@example.com",
		Token:     "tok-123",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.False(t, ve.Verified)

	// Repeating the upsert keeps the original token so pending links work.
	again, err := st.UpsertVerifiedEmail(ctx, &store.VerifiedEmail{
		Email:     "dest@example.com",
		Token:     "tok-456",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.Equal(t, "tok-123", again.Token)

	verified, err := st.MarkEmailVerified(ctx, "tok-123")
	require.NoError(t, err)
	require.NotNil(t, verified)
	require.True(t, verified.Verified)

	missing, err := st.MarkEmailVerified(ctx, "no-such-token")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestInstructionSearch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i, c := range []struct {
		repo      string
		content   string
		embedding []float32
	}{
		{"acme/widgets", "always highlight security issues", []float32{1, 0, 0}},
		{"acme/widgets", "prefer short summaries", []float32{0, 1, 0}},
		{"acme/gadgets", "focus on release notes", []float32{1, 0, 0}},
	} {
		_, err := st.CreateInstruction(ctx, &store.Instruction{
			UserEmail: "alice@example.com",
			Repo:      c.repo,
			Content:   c.content,
			CreatedTs: time.Now().Unix() + int64(i),
			Embedding: c.embedding,
		})
		require.NoError(t, err)
	}

	results, err := st.SearchInstructionsByVector(ctx, &store.InstructionSearchOptions{
		UserEmail: "alice@example.com",
		Repo:      "acme/widgets",
		Embedding: []float32{0.9, 0.1, 0},
		Limit:     1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "always highlight security issues", results[0].Instruction.Content)

	// Search never crosses into another repository's instructions, even when
	// the other repository holds a closer match.
	results, err = st.SearchInstructionsByVector(ctx, &store.InstructionSearchOptions{
		UserEmail: "alice@example.com",
		Repo:      "acme/gadgets",
		Embedding: []float32{0.9, 0.1, 0},
		Limit:     5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "focus on release notes", results[0].Instruction.Content)
}
