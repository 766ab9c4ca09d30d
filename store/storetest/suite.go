// Package storetest holds the behavioural contract every store.Store implementation must meet.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// Suite runs the store contract against the Store returned by New. Each test uses its own
// category so implementations need not be emptied between tests.
type Suite struct {
	suite.Suite
	New   func() store.Store
	s     store.Store
	cat   string
	ctx   context.Context
	table store.Table[entity.Product]
}

func (s *Suite) SetupTest() {
	s.s = s.New()
	s.cat = "Test" + uuid.NewString()[:8]
	s.ctx = context.Background()
	s.table = store.NewTable[entity.Product](s.s)
}

func (s *Suite) rec(id, data string) store.Record {
	return store.Record{Category: s.cat, ID: id, Data: []byte(data)}
}

func (s *Suite) TestInsertGet() {
	saved, err := s.s.Insert(s.ctx, s.rec("a", `{"n":1}`))
	s.Require().NoError(err)
	s.NotEmpty(saved.Version)

	got, err := s.s.Get(s.ctx, s.cat, "a")
	s.Require().NoError(err)
	s.Equal(saved.Version, got.Version)
	s.JSONEq(`{"n":1}`, string(got.Data))
}

func (s *Suite) TestInsertDuplicate() {
	_, err := s.s.Insert(s.ctx, s.rec("a", `{}`))
	s.Require().NoError(err)
	_, err = s.s.Insert(s.ctx, s.rec("a", `{}`))
	s.ErrorIs(err, store.ErrAlreadyExists)
}

func (s *Suite) TestSameIDDifferentCategory() {
	_, err := s.s.Insert(s.ctx, s.rec("a", `{}`))
	s.Require().NoError(err)
	other := store.Record{Category: s.cat + "x", ID: "a", Data: []byte(`{}`)}
	_, err = s.s.Insert(s.ctx, other)
	s.NoError(err)
}

func (s *Suite) TestGetMissing() {
	_, err := s.s.Get(s.ctx, s.cat, "nope")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestGetAll() {
	for i := range 3 {
		_, err := s.s.Insert(s.ctx, s.rec(fmt.Sprintf("id-%d", i), `{}`))
		s.Require().NoError(err)
	}
	all, err := s.s.GetAll(s.ctx, s.cat)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"id-0", "id-1", "id-2"}, lo.Map(all, func(r store.Record, _ int) string { return r.ID }))

	empty, err := s.s.GetAll(s.ctx, s.cat+"-empty")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *Suite) TestUpdateVersioning() {
	v1, err := s.s.Insert(s.ctx, s.rec("a", `{"n":1}`))
	s.Require().NoError(err)

	v1.Data = []byte(`{"n":2}`)
	v2, err := s.s.Update(s.ctx, v1)
	s.Require().NoError(err)
	s.NotEqual(v1.Version, v2.Version)

	// the old token is stale now
	v1.Data = []byte(`{"n":3}`)
	_, err = s.s.Update(s.ctx, v1)
	s.ErrorIs(err, store.ErrVersionConflict)

	got, err := s.s.Get(s.ctx, s.cat, "a")
	s.Require().NoError(err)
	s.JSONEq(`{"n":2}`, string(got.Data))
	s.Equal(v2.Version, got.Version)
}

func (s *Suite) TestUpdateWithoutVersion() {
	_, err := s.s.Insert(s.ctx, s.rec("a", `{"n":1}`))
	s.Require().NoError(err)

	_, err = s.s.Update(s.ctx, s.rec("a", `{"n":2}`))
	s.ErrorIs(err, store.ErrVersionConflict)

	got, err := s.s.Get(s.ctx, s.cat, "a")
	s.Require().NoError(err)
	s.JSONEq(`{"n":1}`, string(got.Data))
}

func (s *Suite) TestUpdateMissing() {
	_, err := s.s.Update(s.ctx, store.Record{Category: s.cat, ID: "ghost", Version: "v", Data: []byte(`{}`)})
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestDelete() {
	_, err := s.s.Insert(s.ctx, s.rec("a", `{}`))
	s.Require().NoError(err)
	s.Require().NoError(s.s.Delete(s.ctx, s.cat, "a"))
	_, err = s.s.Get(s.ctx, s.cat, "a")
	s.ErrorIs(err, store.ErrNotFound)
	s.ErrorIs(s.s.Delete(s.ctx, s.cat, "a"), store.ErrNotFound)
}

// TestConcurrentUpdates races writers holding the same version: exactly one wins.
func (s *Suite) TestConcurrentUpdates() {
	base, err := s.s.Insert(s.ctx, s.rec("a", `{"n":0}`))
	s.Require().NoError(err)
	const writers = 8
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := base
			r.Data = []byte(fmt.Sprintf(`{"n":%d}`, i+1))
			if _, err := s.s.Update(s.ctx, r); err == nil {
				wins.Add(1)
			} else if errors.Is(err, store.ErrVersionConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

func (s *Suite) TestTableRoundTrip() {
	p := entity.Product{ID: "p-" + s.cat, Name: "Mug", Price: entity.MustMoney("12.5"), StockAvailable: 4}
	saved, err := s.table.Insert(s.ctx, p)
	s.Require().NoError(err)
	s.NotEmpty(saved.Version())

	got, err := s.table.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(saved.Version(), got.Version())
	s.Equal("12.50", got.Price.String())
	s.Equal(4, got.StockAvailable)

	got.StockAvailable = 3
	updated, err := s.table.Update(s.ctx, got)
	s.Require().NoError(err)
	s.NotEqual(got.Version(), updated.Version())

	_, err = s.table.Update(s.ctx, got)
	s.ErrorIs(err, store.ErrVersionConflict)
	s.Require().NoError(s.table.Delete(s.ctx, p.ID))
}
