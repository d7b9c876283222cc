package products

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_CreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	a, err := s.Create(ctx, NewProduct{Name: "a"})
	require.NoError(t, err)
	b, err := s.Create(ctx, NewProduct{Name: "b", Price: ptr(2.5)})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Nil(t, a.Price)
	assert.Nil(t, a.Description)
	require.NotNil(t, b.Price)
	assert.Equal(t, 2.5, *b.Price)
}

func TestMemStore_GetReturnsStoredFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(DefaultSeed()...)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(DefaultSeed()))

	for _, p := range all {
		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err = s.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_UpdateMergesPresentFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(NewProduct{Name: "Lamp", Price: ptr(10.0), Description: ptr("desk lamp")})

	got, err := s.Update(ctx, 1, Patch{Price: ptr(12.5)})
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, 12.5, *got.Price)
	assert.Equal(t, "desk lamp", *got.Description)

	got, err = s.Update(ctx, 1, Patch{Name: ptr("Floor lamp"), Description: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "Floor lamp", got.Name)
	assert.Equal(t, 12.5, *got.Price)
	assert.Equal(t, "", *got.Description)

	_, err = s.Update(ctx, 9999, Patch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_RemoveKeepsOrderAndNeverReusesIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(DefaultSeed()...)

	require.NoError(t, s.Remove(ctx, 2))
	assert.ErrorIs(t, s.Remove(ctx, 2), ErrNotFound)

	_, err := s.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.Create(ctx, NewProduct{Name: "Webcam"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)

	all, err := s.List(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{1, 3, 4}, ids)
}

func TestMemStore_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(NewProduct{Name: "Pen", Price: ptr(1.0)})

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	*got.Price = 99

	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *again.Price)

	in := NewProduct{Name: "Ink", Description: ptr("blue")}
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	*in.Description = "red"

	stored, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "blue", *stored.Description)
}

func TestMemStore_ConcurrentCreatesGetUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	const n = 64
	ids := make(chan int64, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Create(ctx, NewProduct{Name: "item"})
			if err == nil {
				ids <- p.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, n)
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()

	s := NewMemStore()
	seeded, err := SeedIfEmpty(ctx, s, DefaultSeed())
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = SeedIfEmpty(ctx, s, DefaultSeed())
	require.NoError(t, err)
	assert.False(t, seeded)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultSeed()))
	assert.Equal(t, "Keyboard", all[0].Name)
}
