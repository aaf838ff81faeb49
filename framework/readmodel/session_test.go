package readmodel_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

type widget struct {
	Key      string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (w *widget) ID() string { return w.Key }

func (w *widget) IndexKeys() map[string]string {
	return map[string]string{"category": w.Category}
}

const widgets = "widgets"

func TestSession_AddAndFind(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	ctx := context.Background()

	s := readmodel.NewSession(store)
	readmodel.Of[widget](s, widgets).Add(&widget{Key: "w1", Name: "first"})
	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s2 := readmodel.NewSession(store)
	w, err := readmodel.Of[widget](s2, widgets).FindByID(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "first", w.Name)
}

func TestSession_FindByID_Absent(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	s := readmodel.NewSession(store)

	w, err := readmodel.Of[widget](s, widgets).FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestSession_DirtyTracking(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	ctx := context.Background()

	seed := readmodel.NewSession(store)
	readmodel.Of[widget](seed, widgets).Add(&widget{Key: "w1", Name: "first"})
	_, err := seed.SaveChanges(ctx)
	require.NoError(t, err)

	s := readmodel.NewSession(store)
	set := readmodel.Of[widget](s, widgets)
	w, err := set.FindByID(ctx, "w1")
	require.NoError(t, err)

	// без изменений ничего не пишется
	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	w.Name = "renamed"
	n, err = s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := set.FindByID(ctx, "w1")
	require.NoError(t, err)
	assert.Same(t, w, again)
}

func TestSession_Remove(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	ctx := context.Background()

	seed := readmodel.NewSession(store)
	readmodel.Of[widget](seed, widgets).Add(&widget{Key: "w1"})
	_, err := seed.SaveChanges(ctx)
	require.NoError(t, err)

	s := readmodel.NewSession(store)
	set := readmodel.Of[widget](s, widgets)
	w, err := set.FindByID(ctx, "w1")
	require.NoError(t, err)
	set.Remove(w)

	gone, err := set.FindByID(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, store.Count(widgets))
}

func TestSession_AddThenRemoveWritesNothing(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	s := readmodel.NewSession(store)
	set := readmodel.Of[widget](s, widgets)

	w := &widget{Key: "w1"}
	set.Add(w)
	set.Remove(w)

	assert.False(t, s.HasChanges())
}

func TestSession_AddIfAbsent(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	ctx := context.Background()

	for i, name := range []string{"first", "second"} {
		s := readmodel.NewSession(store)
		readmodel.Of[widget](s, widgets).AddIfAbsent(&widget{Key: "w1", Name: name})
		n, err := s.SaveChanges(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1-i, n)
	}

	s := readmodel.NewSession(store)
	w, err := readmodel.Of[widget](s, widgets).FindByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "first", w.Name)
}

func TestSession_FindByIndex(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	ctx := context.Background()

	seed := readmodel.NewSession(store)
	set := readmodel.Of[widget](seed, widgets)
	for i := 0; i < 4; i++ {
		category := "a"
		if i%2 == 1 {
			category = "b"
		}
		set.Add(&widget{Key: fmt.Sprintf("w%d", i), Category: category})
	}
	_, err := seed.SaveChanges(ctx)
	require.NoError(t, err)

	s := readmodel.NewSession(store)
	rows, err := readmodel.Of[widget](s, widgets).FindByIndex(ctx, "category", "a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w0", rows[0].Key)
	assert.Equal(t, "w2", rows[1].Key)
}

func TestSession_CancelledContextWritesNothing(t *testing.T) {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	s := readmodel.NewSession(store)
	readmodel.Of[widget](s, widgets).Add(&widget{Key: "w1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveChanges(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Count(widgets))
}

func TestMissingTarget(t *testing.T) {
	err := fmt.Errorf("handle: %w", readmodel.Missing("modules", "m1"))

	missing, ok := readmodel.AsMissing(err)
	require.True(t, ok)
	assert.Equal(t, "modules", missing.Collection)
	assert.Equal(t, "m1", missing.ID)

	_, ok = readmodel.AsMissing(errors.New("boom"))
	assert.False(t, ok)
}
