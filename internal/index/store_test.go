package index

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
)

func product(source, id, title string, price float64) domain.Product {
	return domain.Product{
		Source:    source,
		ID:        id,
		Title:     title,
		Price:     price,
		ScrapedAt: time.Now().UTC(),
	}
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	s := New(Config{})

	inserted, err := s.Upsert(product("ozon", "a", "First", 100))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, s.Len())

	inserted, err = s.Upsert(product("ozon", "a", "Second", 200))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, s.Len(), "same identity never produces a second record")

	got, ok := s.Get(domain.Identity{Source: "ozon", ID: "a"})
	require.True(t, ok)
	assert.Equal(t, "Second", got.Title)
}

func TestUpsert_PreservesAddedAt(t *testing.T) {
	s := New(Config{})

	_, err := s.Upsert(product("ozon", "a", "First", 100))
	require.NoError(t, err)
	first, _ := s.Get(domain.Identity{Source: "ozon", ID: "a"})

	time.Sleep(5 * time.Millisecond)
	_, err = s.Upsert(product("ozon", "a", "Second", 200))
	require.NoError(t, err)
	second, _ := s.Get(domain.Identity{Source: "ozon", ID: "a"})

	assert.Equal(t, first.AddedAt, second.AddedAt)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))
}

func TestUpsert_RejectsInvalid(t *testing.T) {
	s := New(Config{})

	_, err := s.Upsert(domain.Product{Source: "ozon", ID: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, 0, s.Len())
}

func TestUpsert_EnforcesAllowList(t *testing.T) {
	s := New(Config{AllowedSources: []string{"ozon"}})

	_, err := s.Upsert(product("ozon", "a", "OK", 100))
	assert.NoError(t, err)

	_, err = s.Upsert(product("wildberries", "b", "Nope", 100))
	assert.Error(t, err)
}

func TestUpsert_CapacityLimit(t *testing.T) {
	s := New(Config{MaxRecords: 2})

	_, err := s.Upsert(product("ozon", "a", "A", 1))
	require.NoError(t, err)
	_, err = s.Upsert(product("ozon", "b", "B", 2))
	require.NoError(t, err)

	_, err = s.Upsert(product("ozon", "c", "C", 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCapacity))

	// Updates to existing identities still go through at capacity.
	_, err = s.Upsert(product("ozon", "a", "A2", 10))
	assert.NoError(t, err)

	// Removing one frees a slot.
	s.Remove([]domain.Identity{{Source: "ozon", ID: "b"}})
	_, err = s.Upsert(product("ozon", "c", "C", 3))
	assert.NoError(t, err)
}

func TestUpsertBatch_PartialFailure(t *testing.T) {
	s := New(Config{})

	res := s.UpsertBatch([]domain.Product{
		product("ozon", "a", "A", 1),
		{Source: "ozon", ID: "bad"},
		product("ozon", "b", "B", 2),
	})

	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, 2, s.Len(), "valid elements apply even when siblings fail")
}

func TestRemove_Idempotent(t *testing.T) {
	s := New(Config{})
	_, err := s.Upsert(product("ozon", "a", "A", 1))
	require.NoError(t, err)

	ids := []domain.Identity{{Source: "ozon", ID: "a"}, {Source: "ozon", ID: "ghost"}}
	assert.Equal(t, 1, s.Remove(ids))
	assert.Equal(t, 0, s.Remove(ids))
}

func TestClear(t *testing.T) {
	s := New(Config{})
	_, err := s.Upsert(product("ozon", "a", "A", 1))
	require.NoError(t, err)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSnapshot_IsolatedFromWrites(t *testing.T) {
	s := New(Config{})
	_, err := s.Upsert(product("ozon", "a", "Original", 1))
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)

	_, err = s.Upsert(product("ozon", "a", "Changed", 2))
	require.NoError(t, err)
	_, err = s.Upsert(product("ozon", "b", "New", 3))
	require.NoError(t, err)

	assert.Len(t, snap, 1)
	assert.Equal(t, "Original", snap[0].Title)
}

func TestSnapshot_CopiesNotReferences(t *testing.T) {
	s := New(Config{})
	p := product("ozon", "a", "A", 1)
	p.Attributes = map[string]string{"color": "black"}
	_, err := s.Upsert(p)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[0].Attributes["color"] = "red"

	got, _ := s.Get(domain.Identity{Source: "ozon", ID: "a"})
	assert.Equal(t, "black", got.Attributes["color"])
}

func TestEvictStale(t *testing.T) {
	s := New(Config{})
	_, err := s.Upsert(product("ozon", "a", "A", 1))
	require.NoError(t, err)
	_, err = s.Upsert(product("ozon", "b", "B", 2))
	require.NoError(t, err)

	assert.Equal(t, 0, s.EvictStale(time.Hour), "fresh records survive")

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, s.EvictStale(0), "zero max age evicts everything")
	assert.Equal(t, 0, s.Len())
}

func TestConcurrentUpserts_SameIdentity(t *testing.T) {
	s := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(product("ozon", "same", fmt.Sprintf("Title %d", i), float64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len(), "concurrent upserts to one identity leave exactly one record")
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	s := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(product("ozon", fmt.Sprintf("w-%d", i), "W", float64(i)))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
}
