package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creceideas/muralla/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createSubmission(t *testing.T, repo *Repository, name string) *domain.Submission {
	t.Helper()

	sub := &domain.Submission{
		SenderName: name,
		MediaURL:   "/uploads/" + name + ".jpg",
		Caption:    "hi from " + name,
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

func TestCreateAssignsIdentityAndDefaults(t *testing.T) {
	repo := newTestRepository(t)

	sub := createSubmission(t, repo, "Ana")

	require.NotEmpty(t, sub.ID)
	require.False(t, sub.CreatedAt.IsZero())
	require.True(t, sub.Visible)
}

func TestCreateKeepsInsertionOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	names := []string{"Ana", "Bruno", "Carla", "Diego"}
	for _, name := range names {
		createSubmission(t, repo, name)
	}

	subs, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, subs, len(names))

	for i, sub := range subs {
		require.Equal(t, names[i], sub.SenderName)
		if i > 0 {
			require.False(t, sub.CreatedAt.Before(subs[i-1].CreatedAt),
				"timestamps must be non-decreasing in insertion order")
		}
	}
}

func TestSetVisibility(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	sub := createSubmission(t, repo, "Ana")

	require.NoError(t, repo.SetVisibility(ctx, sub.ID, false))

	visible, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Empty(t, visible)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.False(t, all[0].Visible)

	require.NoError(t, repo.SetVisibility(ctx, sub.ID, true))

	visible, err = repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
}

func TestSetVisibilityIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	sub := createSubmission(t, repo, "Ana")

	require.NoError(t, repo.SetVisibility(ctx, sub.ID, true))
	require.NoError(t, repo.SetVisibility(ctx, sub.ID, true))

	visible, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
}

func TestSetVisibilityUnknownID(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.SetVisibility(context.Background(), "no-such-uid", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCountVisible(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := createSubmission(t, repo, "Ana")
	createSubmission(t, repo, "Bruno")

	count, err := repo.CountVisible(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, repo.SetVisibility(ctx, first.ID, false))

	count, err = repo.CountVisible(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestHiddenSubmissionKeepsItsSlot(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	createSubmission(t, repo, "Ana")
	hidden := createSubmission(t, repo, "Bruno")
	createSubmission(t, repo, "Carla")

	require.NoError(t, repo.SetVisibility(ctx, hidden.ID, false))
	require.NoError(t, repo.SetVisibility(ctx, hidden.ID, true))

	subs, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	require.Equal(t, "Bruno", subs[1].SenderName, "toggling must never reorder the collection")
}
