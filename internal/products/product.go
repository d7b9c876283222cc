package products

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidInput = errors.New("invalid product input")
)

type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// NewProduct is the create payload. The id is always assigned by the store.
type NewProduct struct {
	Name        string   `json:"name" validate:"required"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

// Patch is a partial update. Nil fields keep their current value.
type Patch struct {
	Name        *string  `json:"name" validate:"omitnil,min=1"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

func (p Patch) apply(to *Product) {
	if p.Name != nil {
		to.Name = *p.Name
	}
	if p.Price != nil {
		to.Price = ptr(*p.Price)
	}
	if p.Description != nil {
		to.Description = ptr(*p.Description)
	}
}

// Store is the authoritative product collection. Get, Update and Remove
// return ErrNotFound for an unknown id.
type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, in NewProduct) (Product, error)
	Update(ctx context.Context, id int64, p Patch) (Product, error)
	Remove(ctx context.Context, id int64) error
}

func DefaultSeed() []NewProduct {
	return []NewProduct{
		{Name: "Keyboard", Price: ptr(49.90), Description: ptr("Mechanical keyboard, brown switches")},
		{Name: "Mouse", Price: ptr(19.90), Description: ptr("Wireless optical mouse")},
		{Name: "Monitor", Price: ptr(189.00), Description: ptr("27 inch IPS display")},
	}
}

// SeedIfEmpty creates items in order when s holds no products yet.
// It reports whether seeding happened.
func SeedIfEmpty(ctx context.Context, s Store, items []NewProduct) (bool, error) {
	if len(items) == 0 {
		return false, nil
	}
	existing, err := s.List(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: list: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	for _, in := range items {
		if _, err := s.Create(ctx, in); err != nil {
			return false, fmt.Errorf("seed: create %q: %w", in.Name, err)
		}
	}
	return true, nil
}

func ptr[T any](v T) *T { return &v }

// clone copies the pointer fields so callers cannot mutate stored records.
func clone(p Product) Product {
	if p.Price != nil {
		p.Price = ptr(*p.Price)
	}
	if p.Description != nil {
		p.Description = ptr(*p.Description)
	}
	return p
}
