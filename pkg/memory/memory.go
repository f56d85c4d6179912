// Package memory persists the list of discovered opportunities as a JSON
// array. The whole array is rewritten on every write.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultLocation = "memory.json"
	DefaultKeep     = 2
)

var (
	// ErrMalformed is returned by Read when the stored data is not a valid opportunity list
	ErrMalformed = goerr.New("malformed opportunity memory")
)

// Backend stores one serialized blob
type Backend interface {
	// Load returns the blob, or found=false when nothing is stored yet
	Load(ctx context.Context) (data []byte, found bool, err error)
	// Save replaces the blob as a whole
	Save(ctx context.Context, data []byte) error
	// Location describes where the blob lives, for logs
	Location() string
	// Close releases connections held by the backend
	Close() error
}

// Store reads and writes the opportunity list
type Store struct {
	backend Backend
}

// New creates a Store on backend
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open selects a backend from location: "gs://bucket/key" for Cloud
// Storage, "redis://host:port/db?key=name" for Redis, anything else is a
// local file path.
func Open(ctx context.Context, location string) (*Store, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		backend, err := NewGCS(ctx, location)
		if err != nil {
			return nil, err
		}
		return New(backend), nil

	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		backend, err := NewRedis(location)
		if err != nil {
			return nil, err
		}
		return New(backend), nil

	default:
		if location == "" {
			location = DefaultLocation
		}
		return New(NewFile(location)), nil
	}
}

// Location returns where the memory is stored
func (s *Store) Location() string {
	return s.backend.Location()
}

func (s *Store) Close() error {
	return s.backend.Close()
}

type dealRecord struct {
	ProductDescription *string  `json:"product_description"`
	Price              *float64 `json:"price"`
	URL                *string  `json:"url"`
}

type opportunityRecord struct {
	Deal     *dealRecord `json:"deal"`
	Estimate *float64    `json:"estimate"`
	Discount *float64    `json:"discount"`
}

// Read returns the stored opportunities. Nothing stored yet is an empty
// list; any malformed entry fails the whole read.
func (s *Store) Read(ctx context.Context) ([]*model.Opportunity, error) {
	data, found, err := s.backend.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory", goerr.V("location", s.backend.Location()))
	}
	if !found {
		return []*model.Opportunity{}, nil
	}

	return decode(data, s.backend.Location())
}

func decode(data []byte, location string) ([]*model.Opportunity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var records []*opportunityRecord
	if err := dec.Decode(&records); err != nil {
		return nil, goerr.Wrap(ErrMalformed, "failed to decode memory",
			goerr.V("location", location), goerr.V("cause", err.Error()))
	}
	if dec.More() {
		return nil, goerr.Wrap(ErrMalformed, "trailing data after memory array", goerr.V("location", location))
	}
	if records == nil {
		return nil, goerr.Wrap(ErrMalformed, "memory is not a JSON array", goerr.V("location", location))
	}

	opps := make([]*model.Opportunity, 0, len(records))
	for i, r := range records {
		if r == nil || r.Deal == nil || r.Estimate == nil || r.Discount == nil ||
			r.Deal.ProductDescription == nil || r.Deal.Price == nil || r.Deal.URL == nil {
			return nil, goerr.Wrap(ErrMalformed, "memory entry misses a required field",
				goerr.V("location", location), goerr.V("index", i))
		}

		opp := &model.Opportunity{
			Deal: model.Deal{
				ProductDescription: *r.Deal.ProductDescription,
				Price:              *r.Deal.Price,
				URL:                *r.Deal.URL,
			},
			Estimate: *r.Estimate,
			Discount: *r.Discount,
		}
		if err := opp.Validate(); err != nil {
			return nil, goerr.Wrap(ErrMalformed, "invalid memory entry",
				goerr.V("location", location), goerr.V("index", i), goerr.V("cause", err.Error()))
		}
		opps = append(opps, opp)
	}

	return opps, nil
}

// Write replaces the stored list with opps
func (s *Store) Write(ctx context.Context, opps []*model.Opportunity) error {
	if opps == nil {
		opps = []*model.Opportunity{}
	}
	for i, opp := range opps {
		if opp == nil {
			return goerr.New("nil opportunity", goerr.V("index", i))
		}
		if err := opp.Validate(); err != nil {
			return goerr.Wrap(err, "refusing to write invalid opportunity", goerr.V("index", i))
		}
	}

	data, err := json.MarshalIndent(opps, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to encode memory")
	}

	if err := s.backend.Save(ctx, data); err != nil {
		return goerr.Wrap(err, "failed to save memory", goerr.V("location", s.backend.Location()))
	}
	return nil
}

// ResetKeepFirst truncates the stored list to its first n entries
func (s *Store) ResetKeepFirst(ctx context.Context, n int) ([]*model.Opportunity, error) {
	opps, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}

	n = max(n, 0)
	if len(opps) > n {
		opps = opps[:n]
	}

	if err := s.Write(ctx, opps); err != nil {
		return nil, err
	}
	return opps, nil
}
