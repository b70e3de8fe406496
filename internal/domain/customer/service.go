package customer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	customers Repository
}

func NewService(customers Repository) *Service {
	return &Service{customers: customers}
}

func (s *Service) Create(ctx context.Context, c *Customer) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (c.Phone == nil || *c.Phone == "") && (c.Email == nil || *c.Email == "") {
		return fmt.Errorf("phone or email is required")
	}
	return s.customers.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// FindOrCreateByPhone resolves a caller to a customer record, creating one on
// first contact. Used by the voice webhook flow.
func (s *Service) FindOrCreateByPhone(ctx context.Context, phone, name string) (*Customer, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}
	c, err := s.customers.GetByPhone(ctx, phone)
	if err == nil {
		return c, nil
	}
	if name == "" {
		name = "Caller " + phone
	}
	c = &Customer{Name: name, Phone: &phone}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, c *Customer) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.customers.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.customers.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error) {
	return s.customers.Search(ctx, query, limit, offset)
}
