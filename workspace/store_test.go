package workspace

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/BaSui01/fmriflow/workflow"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewStore(db, zaptest.NewLogger(t))
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleGraph() *workflow.Graph {
	return &workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "1", Label: "bet", DockerVersion: "6.0.7", Parameters: map[string]any{"frac": 0.4}},
			{ID: "2", Label: "fast"},
		},
		Edges: []workflow.Edge{{
			ID:       "e1",
			Source:   "1",
			Target:   "2",
			Mappings: []workflow.Mapping{{SourceOutput: "brain_extraction", TargetInput: "input"}},
		}},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	g := sampleGraph()

	w, err := store.Create(ctx, "  T1 preprocessing  ", "skull strip then segment", g)
	require.NoError(t, err)
	_, err = uuid.Parse(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1 preprocessing", w.Name)
	assert.Equal(t, g.Fingerprint(), w.Fingerprint)
	assert.Equal(t, 2, w.NodeCount)
	assert.Equal(t, 1, w.EdgeCount)

	got, err := store.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, "skull strip then segment", got.Description)

	decoded, err := got.Graph()
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint(), decoded.Fingerprint())
	assert.Equal(t, map[string]any{"frac": 0.4}, decoded.Nodes[0].Parameters)
}

func TestStore_CreateValidation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "   ", "", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = store.Create(ctx, string(long), "", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	w, err := store.Create(ctx, "empty", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.NodeCount)
	g, err := w.Graph()
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

func TestStore_GetNotFound(t *testing.T) {
	store := setupStore(t)
	_, err := store.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"Resting state", "T1 anatomy", "DWI tractography", "rest denoise"} {
		_, err := store.Create(ctx, name, "", sampleGraph())
		require.NoError(t, err)
	}

	items, total, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 4)

	items, total, err = store.List(ctx, ListOptions{Limit: 3, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 2)

	items, total, err = store.List(ctx, ListOptions{Query: "REST"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	names := []string{items[0].Name, items[1].Name}
	assert.ElementsMatch(t, []string{"Resting state", "rest denoise"}, names)
}

func TestStore_Update(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "draft", "", sampleGraph())
	require.NoError(t, err)

	name := "final"
	g := sampleGraph()
	g.Nodes = g.Nodes[:1]
	g.Edges = nil

	updated, err := store.Update(ctx, w.ID, Update{Name: &name, Graph: g})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Name)
	assert.Equal(t, 1, updated.NodeCount)
	assert.Equal(t, 0, updated.EdgeCount)
	assert.Equal(t, g.Fingerprint(), updated.Fingerprint)
	assert.Equal(t, w.CreatedAt.Unix(), updated.CreatedAt.Unix())

	desc := "now with notes"
	updated, err = store.Update(ctx, w.ID, Update{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Name)
	assert.Equal(t, desc, updated.Description)

	blank := " "
	_, err = store.Update(ctx, w.ID, Update{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.Update(ctx, "missing", Update{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "scratch", "", nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, w.ID))
	_, err = store.Get(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, w.ID), ErrNotFound)
}
