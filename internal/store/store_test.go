package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sitewatch/sitewatch/internal/store"
)

// newTestStore starts a disposable Postgres container, runs the embedded
// migrations through store.New, and tears the container down on cleanup.
// Grounded on the teacher's pkg/database/client_test.go newTestClient.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sitewatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := store.New(ctx, store.Config{DatabaseURL: connStr, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestStore_PingSucceedsAfterMigrations(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
}

// Agent dedup (S3): once an open finding exists for a page, HasOpenFinding
// must report true regardless of finding_type so the agent loop
// short-circuits before ever calling the model.
func TestStore_HasOpenFinding_DedupAcrossLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pageURL := "https://example.com/pricing"
	require.NoError(t, st.UpsertPage(ctx, store.Page{URL: pageURL, PageType: store.PageTypeLanding, IsActive: true}))

	open, err := st.HasOpenFinding(ctx, pageURL)
	require.NoError(t, err)
	require.False(t, open)

	id, err := st.InsertFinding(ctx, store.Finding{
		PageURL:     &pageURL,
		FindingType: "traffic_drop",
		Severity:    store.SeverityHigh,
		Title:       "Traffic decline",
		Status:      store.FindingStatusRecommendationDraft,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	open, err = st.HasOpenFinding(ctx, pageURL)
	require.NoError(t, err)
	require.True(t, open, "an open finding of any finding_type must be treated as a dedup match")

	require.NoError(t, st.UpdateFindingStatus(ctx, id, store.FindingStatusResolved))

	open, err = st.HasOpenFinding(ctx, pageURL)
	require.NoError(t, err)
	require.False(t, open, "a resolved finding no longer blocks a fresh investigation")
}

// Dedup is keyed on page URL alone: an open finding of an unlisted or
// model-defaulted finding_type ("other") must still block re-investigation
// of the same page.
func TestStore_HasOpenFinding_BlocksOnAnyFindingType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pageURL := "https://example.com/about"
	require.NoError(t, st.UpsertPage(ctx, store.Page{URL: pageURL, PageType: store.PageTypeSite, IsActive: true}))

	_, err := st.InsertFinding(ctx, store.Finding{
		PageURL:     &pageURL,
		FindingType: "other",
		Severity:    store.SeverityMedium,
		Title:       "Unclassified recommendation",
		Status:      store.FindingStatusRecommendationDraft,
	})
	require.NoError(t, err)

	open, err := st.HasOpenFinding(ctx, pageURL)
	require.NoError(t, err)
	require.True(t, open)
}

// Forced termination (S4): a skipped finding persists with the
// "Forced termination" reason the agent loop's budget-exhaustion path
// produces, but a skipped finding is not one of the open statuses
// {new, recommendation_drafted, approved}, so it must not block a future
// investigation of the same page.
func TestStore_InsertFinding_SkippedForcedTermination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pageURL := "https://example.com/blog/slow-post"
	require.NoError(t, st.UpsertPage(ctx, store.Page{URL: pageURL, PageType: store.PageTypeBlog, IsActive: true}))

	id, err := st.InsertFinding(ctx, store.Finding{
		PageURL:     &pageURL,
		FindingType: "speed_alert",
		Severity:    store.SeverityLow,
		Title:       "Investigation skipped",
		SkipReason:  "Forced termination: tool-call budget exhausted",
		Status:      store.FindingStatusSkipped,
	})
	require.NoError(t, err)

	got, err := st.GetFinding(ctx, id)
	require.NoError(t, err)
	require.Equal(t, store.FindingStatusSkipped, got.Status)
	require.Contains(t, got.SkipReason, "Forced termination")

	open, err := st.HasOpenFinding(ctx, pageURL)
	require.NoError(t, err)
	require.False(t, open, "a skipped finding must not block a future investigation of the same page")
}
