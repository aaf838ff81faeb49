package projection_test

import (
	"context"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

type itemCreated struct {
	events.Base
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}

func (itemCreated) EventType() string      { return "ItemCreated" }
func (e itemCreated) AggregateID() string  { return e.ItemID }
func (e itemCreated) CreatedID() string    { return e.ItemID }
func (e itemCreated) PartitionKey() string { return e.ItemID }

type itemRenamed struct {
	events.Base
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}

func (itemRenamed) EventType() string     { return "ItemRenamed" }
func (e itemRenamed) AggregateID() string { return e.ItemID }

type item struct {
	Key     string `json:"id"`
	Name    string `json:"name"`
	Renames int    `json:"renames"`
}

func (i *item) ID() string { return i.Key }

const items = "items"

func newItemCreated(id, name string) itemCreated {
	return itemCreated{Base: events.NewBase(), ItemID: id, Name: name}
}

func newItemRenamed(id, name string) itemRenamed {
	return itemRenamed{Base: events.NewBase(), ItemID: id, Name: name}
}

func itemProjector(name string, priority core.Priority) *projection.Projector {
	p := projection.NewProjector(name, priority)
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e itemCreated) error {
		readmodel.Of[item](s, name).Add(&item{Key: e.ItemID, Name: e.Name})
		return nil
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e itemRenamed) error {
		row, err := readmodel.Of[item](s, name).FindByID(ctx, e.ItemID)
		if err != nil {
			return err
		}
		if row == nil {
			return readmodel.Missing(name, e.ItemID)
		}
		row.Name = e.Name
		row.Renames++
		return nil
	})
	return p
}

func readItem(store readmodel.Store, collection, id string) *item {
	s := readmodel.NewSession(store)
	row, _ := readmodel.Of[item](s, collection).FindByID(context.Background(), id)
	return row
}
