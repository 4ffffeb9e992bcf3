package improvement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertImprovement(t *testing.T, store *MemoryStore, typ string, usage int, active bool, createdAt time.Time) *Improvement {
	t.Helper()
	imp := &Improvement{
		Type:           typ,
		PromptAddition: "guidelines for " + typ,
		Confidence:     0.8,
		IsActive:       active,
		UsageCount:     usage,
		CreatedAt:      createdAt,
	}
	require.NoError(t, store.Insert(context.Background(), imp))
	return imp
}

func TestMemoryStore_Select(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Should return nil when nothing is active", func(t *testing.T) {
		store := NewMemoryStore()
		insertImprovement(t, store, "accuracy", 0, false, now)

		selected, err := store.Select(ctx)

		require.NoError(t, err)
		assert.Nil(t, selected)
	})

	t.Run("Should prefer the lowest usage count", func(t *testing.T) {
		store := NewMemoryStore()
		a := insertImprovement(t, store, "accuracy", 0, true, now.Add(-time.Hour))
		insertImprovement(t, store, "completeness", 5, true, now)

		selected, err := store.Select(ctx)

		require.NoError(t, err)
		require.NotNil(t, selected)
		assert.Equal(t, a.ID, selected.ID)
	})

	t.Run("Should break usage ties by most recent creation", func(t *testing.T) {
		store := NewMemoryStore()
		insertImprovement(t, store, "older", 2, true, now.Add(-2*time.Hour))
		newer := insertImprovement(t, store, "newer", 2, true, now)

		selected, err := store.Select(ctx)

		require.NoError(t, err)
		require.NotNil(t, selected)
		assert.Equal(t, newer.ID, selected.ID)
	})

	t.Run("Should rotate between improvements as usage accumulates", func(t *testing.T) {
		store := NewMemoryStore()
		a := insertImprovement(t, store, "A", 0, true, now.Add(-time.Hour))
		b := insertImprovement(t, store, "B", 5, true, now)

		first, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, first.ID)

		require.NoError(t, store.RecordUsage(ctx, a.ID))
		second, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, second.ID, "A at usage 1 still beats B at usage 5")

		for i := 0; i < 4; i++ {
			require.NoError(t, store.RecordUsage(ctx, a.ID))
		}
		third, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, b.ID, third.ID, "once usage counts tie, the newer improvement wins")
	})
}

func TestMemoryStore_RecordUsage(t *testing.T) {
	t.Run("Should not lose concurrent increments", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemoryStore()
		imp := insertImprovement(t, store, "accuracy", 0, true, time.Now().UTC())

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.RecordUsage(ctx, imp.ID))
			}()
		}
		wg.Wait()

		selected, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, selected.UsageCount)
	})
}

func TestMemoryStore_SetActive(t *testing.T) {
	t.Run("Should deactivate without deleting", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemoryStore()
		imp := insertImprovement(t, store, "format", 0, true, time.Now().UTC())

		require.NoError(t, store.SetActive(ctx, imp.ID, false))

		selected, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Nil(t, selected)

		require.NoError(t, store.SetActive(ctx, imp.ID, true))
		selected, err = store.Select(ctx)
		require.NoError(t, err)
		require.NotNil(t, selected)
		assert.Equal(t, imp.ID, selected.ID)
	})
}

func TestMemoryStore_Insert(t *testing.T) {
	t.Run("Should assign sequential ids and not share state with caller", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemoryStore()
		imp := &Improvement{Type: "accuracy", IsActive: true}
		require.NoError(t, store.Insert(ctx, imp))
		assert.Equal(t, int64(1), imp.ID)

		imp.PromptAddition = "mutated after insert"
		listed, err := store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.NotEqual(t, "mutated after insert", listed[0].PromptAddition)
	})
}
