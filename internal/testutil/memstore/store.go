// Package memstore is an in-memory stand-in for the Mongo repositories. It
// honors the same conditional updates, uniqueness rules and sentinel errors,
// and its transactions roll back every collection when fn fails.
package memstore

import (
	"context"
	"sort"
	mongotx "smartdorm/pkg/db/mongo"
	"smartdorm/pkg/model"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	txMu sync.Mutex

	mu        sync.Mutex
	rooms     map[string]model.Room
	customers map[string]model.Customer
	bookings  map[string]model.Booking
	bills     map[string]model.Bill
	payments  map[string]model.Payment
	checkouts map[string]model.Checkout
	failures  map[string]error
}

func New() *Store {
	return &Store{
		rooms:     map[string]model.Room{},
		customers: map[string]model.Customer{},
		bookings:  map[string]model.Booking{},
		bills:     map[string]model.Bill{},
		payments:  map[string]model.Payment{},
		checkouts: map[string]model.Checkout{},
		failures:  map[string]error{},
	}
}

// Fail makes every later call of op (for example "bookings.Create") return
// err. A nil err clears the failure.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

// ExecuteTransaction serializes transactions and restores the snapshot taken
// before fn when fn fails. Nested calls join the outer transaction.
func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if sessCtx, ok := ctx.(mongo.SessionContext); ok {
		return fn(sessCtx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(mongo.NewSessionContext(ctx, nil)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	rooms     map[string]model.Room
	customers map[string]model.Customer
	bookings  map[string]model.Booking
	bills     map[string]model.Bill
	payments  map[string]model.Payment
	checkouts map[string]model.Checkout
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		rooms:     clone(s.rooms),
		customers: clone(s.customers),
		bookings:  clone(s.bookings),
		bills:     clone(s.bills),
		payments:  clone(s.payments),
		checkouts: clone(s.checkouts),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = snap.rooms
	s.customers = snap.customers
	s.bookings = snap.bookings
	s.bills = snap.bills
	s.payments = snap.payments
	s.checkouts = snap.checkouts
}

func clone[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func validID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func page[T any](items []T, limit int, offset int64) []T {
	if offset >= int64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// newestFirst orders by creation time, then by id, both descending.
func newestFirst(createdI, createdJ time.Time, idI, idJ string) bool {
	if !createdI.Equal(createdJ) {
		return createdI.After(createdJ)
	}
	return idI > idJ
}

func sortSlice[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
