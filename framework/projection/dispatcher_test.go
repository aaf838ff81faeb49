package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

func newStore() *repository.InMemoryStore {
	return repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
}

type recordingConsumer struct {
	name     string
	priority core.Priority
	calls    *[]string
	err      error
	panics   bool
}

func (c recordingConsumer) Name() string            { return c.name }
func (c recordingConsumer) Priority() core.Priority { return c.priority }
func (c recordingConsumer) EventTypes() []string    { return []string{"ItemCreated"} }

func (c recordingConsumer) Handle(ctx context.Context, s *readmodel.Session, e events.Event) error {
	*c.calls = append(*c.calls, c.name)
	if c.panics {
		panic("boom")
	}
	return c.err
}

func TestDispatcher_RejectsDuplicateNames(t *testing.T) {
	d := projection.NewDispatcher(newStore(), projection.DefaultDispatcherConfig())
	require.NoError(t, d.Register(itemProjector(items, core.PriorityNormal)))

	err := d.Register(itemProjector(items, core.PriorityHigh))
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrAlreadyExists))
	assert.Equal(t, []string{"ItemCreated", "ItemRenamed"}, d.EventTypes())
}

func TestDispatcher_PriorityOrder(t *testing.T) {
	var calls []string
	d := projection.NewDispatcher(newStore(), projection.DefaultDispatcherConfig())
	require.NoError(t, d.Register(recordingConsumer{name: "low", priority: core.PriorityLow, calls: &calls}))
	require.NoError(t, d.Register(recordingConsumer{name: "normal", priority: core.PriorityNormal, calls: &calls}))
	require.NoError(t, d.Register(recordingConsumer{name: "high", priority: core.PriorityHigh, calls: &calls}))
	require.NoError(t, d.Register(recordingConsumer{name: "normal-2", priority: core.PriorityNormal, calls: &calls}))

	report, err := d.Dispatch(context.Background(), newItemCreated("i1", "x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "normal", "normal-2", "low"}, calls)
	assert.Equal(t, 4, report.Consumers)
	assert.Equal(t, 4, report.Applied)
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	var calls []string
	store := newStore()
	d := projection.NewDispatcher(store, projection.DefaultDispatcherConfig())
	require.NoError(t, d.Register(recordingConsumer{name: "panicky", priority: core.PriorityCritical, calls: &calls, panics: true}))
	require.NoError(t, d.Register(recordingConsumer{name: "broken", priority: core.PriorityHigh, calls: &calls, err: errors.New("store down")}))
	require.NoError(t, d.Register(itemProjector(items, core.PriorityLow)))

	report, err := d.Dispatch(context.Background(), newItemCreated("i1", "first"))
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrConsumerPanic))
	assert.Contains(t, err.Error(), "store down")

	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 2, report.Failed)
	row := readItem(store, items, "i1")
	require.NotNil(t, row)
	assert.Equal(t, "first", row.Name)
}

func TestDispatcher_MissingTargetIsIgnored(t *testing.T) {
	store := newStore()
	d := projection.NewDispatcher(store, projection.DefaultDispatcherConfig())
	require.NoError(t, d.Register(itemProjector(items, core.PriorityNormal)))
	ctx := context.Background()

	report, err := d.Dispatch(ctx, newItemRenamed("i1", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
	assert.Nil(t, readItem(store, items, "i1"))

	_, err = d.Dispatch(ctx, newItemCreated("i1", "created"))
	require.NoError(t, err)

	// Переименование, пришедшее раньше создания, потеряно
	row := readItem(store, items, "i1")
	require.NotNil(t, row)
	assert.Equal(t, "created", row.Name)
	assert.Equal(t, 0, row.Renames)
}

func TestDispatcher_ParkingReplaysAfterCreation(t *testing.T) {
	store := newStore()
	cfg := projection.DefaultDispatcherConfig()
	cfg.Parking.Enabled = true
	d := projection.NewDispatcher(store, cfg)
	require.NoError(t, d.Register(itemProjector(items, core.PriorityNormal)))
	ctx := context.Background()

	report, err := d.Dispatch(ctx, newItemRenamed("i1", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parked)
	assert.Equal(t, 1, d.Parking().Len())

	report, err = d.Dispatch(ctx, newItemCreated("i1", "created"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, 0, d.Parking().Len())

	row := readItem(store, items, "i1")
	require.NotNil(t, row)
	assert.Equal(t, "renamed", row.Name)
	assert.Equal(t, 1, row.Renames)
}

func TestDispatcher_ParkedReplayTargetsOnlyParkingConsumer(t *testing.T) {
	store := newStore()
	cfg := projection.DefaultDispatcherConfig()
	cfg.Parking.Enabled = true
	d := projection.NewDispatcher(store, cfg)
	require.NoError(t, d.Register(itemProjector("left", core.PriorityNormal)))
	require.NoError(t, d.Register(itemProjector("right", core.PriorityNormal)))
	ctx := context.Background()

	// Для right строка уже есть, для left еще нет
	seed := readmodel.NewSession(store)
	readmodel.Of[item](seed, "right").Add(&item{Key: "i1", Name: "seed"})
	_, err := seed.SaveChanges(ctx)
	require.NoError(t, err)

	report, err := d.Dispatch(ctx, newItemRenamed("i1", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Parked)

	_, err = d.Dispatch(ctx, newItemCreated("i1", "created"))
	require.NoError(t, err)

	left := readItem(store, "left", "i1")
	right := readItem(store, "right", "i1")
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.Equal(t, "renamed", left.Name)
	assert.Equal(t, 1, left.Renames)
	// right получил переименование один раз, затем create перезаписал строку
	assert.Equal(t, "created", right.Name)
}

func TestDispatcher_AtomicModeCommitsNothingOnFailure(t *testing.T) {
	var calls []string
	store := newStore()
	cfg := projection.DefaultDispatcherConfig()
	cfg.Mode = projection.ModeAtomic
	d := projection.NewDispatcher(store, cfg)
	require.NoError(t, d.Register(itemProjector(items, core.PriorityHigh)))
	require.NoError(t, d.Register(recordingConsumer{name: "broken", priority: core.PriorityLow, calls: &calls, err: errors.New("boom")}))

	_, err := d.Dispatch(context.Background(), newItemCreated("i1", "first"))
	require.Error(t, err)
	assert.Nil(t, readItem(store, items, "i1"))
	assert.Equal(t, 0, store.Count(items))
}

func TestDispatcher_AtomicModeCommitsOncePerEvent(t *testing.T) {
	store := newStore()
	cfg := projection.DefaultDispatcherConfig()
	cfg.Mode = projection.ModeAtomic
	d := projection.NewDispatcher(store, cfg)
	require.NoError(t, d.Register(itemProjector("left", core.PriorityHigh)))
	require.NoError(t, d.Register(itemProjector("right", core.PriorityLow)))

	report, err := d.Dispatch(context.Background(), newItemCreated("i1", "first"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 2, report.Rows)
	assert.NotNil(t, readItem(store, "left", "i1"))
	assert.NotNil(t, readItem(store, "right", "i1"))
}

func TestDispatcher_NoConsumers(t *testing.T) {
	d := projection.NewDispatcher(newStore(), projection.DefaultDispatcherConfig())
	report, err := d.Dispatch(context.Background(), newItemCreated("i1", "x"))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Consumers)
}

// racingStore перед первой фиксацией записывает ту же строку другой сессией
type racingStore struct {
	readmodel.Store
	collection string
	id         string
	raced      bool
}

func (r *racingStore) Commit(ctx context.Context, ops []readmodel.Op) (int, error) {
	if !r.raced {
		r.raced = true
		other := readmodel.NewSession(r.Store)
		row, err := readmodel.Of[item](other, r.collection).FindByID(ctx, r.id)
		if err != nil {
			return 0, err
		}
		row.Name = "other"
		row.Renames++
		if _, err := other.SaveChanges(ctx); err != nil {
			return 0, err
		}
	}
	return r.Store.Commit(ctx, ops)
}

func seedItem(t *testing.T, store readmodel.Store, collection, id string) {
	t.Helper()
	s := readmodel.NewSession(store)
	readmodel.Of[item](s, collection).Add(&item{Key: id, Name: "seed"})
	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
}

func TestDispatcher_RetriesConsumerOnWriteConflict(t *testing.T) {
	store := newStore()
	seedItem(t, store, items, "i1")
	racing := &racingStore{Store: store, collection: items, id: "i1"}

	d := projection.NewDispatcher(racing, projection.DefaultDispatcherConfig())
	require.NoError(t, d.Register(itemProjector(items, core.PriorityNormal)))

	report, err := d.Dispatch(context.Background(), newItemRenamed("i1", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	// Обе записи сохранены: параллельная и повторенная
	row := readItem(store, items, "i1")
	require.NotNil(t, row)
	assert.Equal(t, "renamed", row.Name)
	assert.Equal(t, 2, row.Renames)
}

func TestDispatcher_WriteConflictWithoutRetries(t *testing.T) {
	store := newStore()
	seedItem(t, store, items, "i1")
	racing := &racingStore{Store: store, collection: items, id: "i1"}

	cfg := projection.DefaultDispatcherConfig()
	cfg.ConflictRetries = 0
	d := projection.NewDispatcher(racing, cfg)
	require.NoError(t, d.Register(itemProjector(items, core.PriorityNormal)))

	report, err := d.Dispatch(context.Background(), newItemRenamed("i1", "renamed"))
	require.Error(t, err)
	assert.True(t, readmodel.IsConflict(err))
	assert.Equal(t, 1, report.Failed)

	row := readItem(store, items, "i1")
	require.NotNil(t, row)
	assert.Equal(t, "other", row.Name)
	assert.Equal(t, 1, row.Renames)
}

func TestDispatcher_AtomicModeRetriesEventOnWriteConflict(t *testing.T) {
	store := newStore()
	seedItem(t, store, "left", "i1")
	racing := &racingStore{Store: store, collection: "left", id: "i1"}

	cfg := projection.DefaultDispatcherConfig()
	cfg.Mode = projection.ModeAtomic
	cfg.Parking.Enabled = true
	d := projection.NewDispatcher(racing, cfg)
	require.NoError(t, d.Register(itemProjector("left", core.PriorityHigh)))
	require.NoError(t, d.Register(itemProjector("right", core.PriorityLow)))

	report, err := d.Dispatch(context.Background(), newItemRenamed("i1", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Parked)
	// Повтор события не откладывает его второй раз
	assert.Equal(t, 1, d.Parking().Len())

	row := readItem(store, "left", "i1")
	require.NotNil(t, row)
	assert.Equal(t, "renamed", row.Name)
	assert.Equal(t, 2, row.Renames)
}
