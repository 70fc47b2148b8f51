package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "adagent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := []models.Record{
		models.NewRecord("google", map[string]interface{}{"campaignId": "c1", "budget": 100.0}),
		models.NewRecord("google", map[string]interface{}{"campaignId": "c2", "budget": 50.0}),
	}
	n, err := s.Merge(ctx, "google_campaigns", "campaignId", first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second := []models.Record{
		models.NewRecord("google", map[string]interface{}{"campaignId": "c2", "budget": 75.0}),
		models.NewRecord("google", map[string]interface{}{"campaignId": "c3", "budget": 10.0}),
	}
	_, err = s.Merge(ctx, "google_campaigns", "campaignId", second)
	require.NoError(t, err)

	count, err := s.Count(ctx, "google_campaigns")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	r, ok, err := s.Get(ctx, "google_campaigns", "c2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 75.0, r["budget"])
	assert.Equal(t, "google", r.Source())

	_, ok, err = s.Get(ctx, "google_campaigns", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMerge_NumericKeys(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Merge(ctx, "meta_campaigns", "id", []models.Record{
		models.NewRecord("meta", map[string]interface{}{"id": 42.0}),
		models.NewRecord("meta", map[string]interface{}{"id": 42.0, "name": "dup"}),
	})
	require.NoError(t, err)

	r, ok, err := s.Get(ctx, "meta_campaigns", "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dup", r["name"])
}

func TestMerge_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Merge(ctx, "bad-name; DROP", "id", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.Merge(ctx, "tiktok_campaigns", "id", []models.Record{
		models.NewRecord("tiktok", map[string]interface{}{"id": "a"}),
		models.NewRecord("tiktok", map[string]interface{}{"name": "no key"}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `record 1 has no primary key field "id"`)

	count, err := s.Count(ctx, "tiktok_campaigns")
	require.NoError(t, err)
	assert.Zero(t, count, "failed merge is rolled back")
}

func TestTables(t *testing.T) {
	ctx := context.Background()
	s, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Merge(ctx, "tiktok_campaigns", "id", nil)
	require.NoError(t, err)
	_, err = s.Merge(ctx, "google_campaigns", "id", []models.Record{
		models.NewRecord("google", map[string]interface{}{"id": "x"}),
	})
	require.NoError(t, err)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"google_campaigns", "tiktok_campaigns"}, tables)
}
