package memstore

import (
	"context"
	"fmt"
	customerserrors "smartdorm/internal/customers/errors"
	"smartdorm/internal/customers/repository"
	"smartdorm/pkg/model"
)

type customerRepo struct{ s *Store }

func (s *Store) Customers() repository.CustomerRepository { return customerRepo{s} }

// PutCustomer stores customer, assigning an id when it has none.
func (s *Store) PutCustomer(customer model.Customer) model.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if customer.ID == "" {
		customer.ID = newID()
	}
	s.customers[customer.ID] = customer
	return customer
}

func (s *Store) CustomerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

func (r customerRepo) Upsert(_ context.Context, customer *model.Customer) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("customers.Upsert"); err != nil {
		return nil, err
	}

	ts := now()
	for id, stored := range r.s.customers {
		if stored.ExternalID != customer.ExternalID {
			continue
		}
		stored.DisplayName = customer.DisplayName
		stored.FirstName = customer.FirstName
		stored.LastName = customer.LastName
		stored.Phone = customer.Phone
		stored.Email = customer.Email
		stored.UpdatedAt = ts
		r.s.customers[id] = stored
		return &stored, nil
	}
	stored := *customer
	stored.ID = newID()
	stored.CreatedAt = ts
	stored.UpdatedAt = ts
	r.s.customers[stored.ID] = stored
	return &stored, nil
}

func (r customerRepo) FindByID(_ context.Context, id string) (*model.Customer, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", customerserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	customer, ok := r.s.customers[id]
	if !ok {
		return nil, customerserrors.ErrNotFound
	}
	return &customer, nil
}

func (r customerRepo) FindByExternalID(_ context.Context, externalID string) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, customer := range r.s.customers {
		if customer.ExternalID == externalID {
			return &customer, nil
		}
	}
	return nil, customerserrors.ErrNotFound
}
