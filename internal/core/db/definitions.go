package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/types"
)

// DefinitionSet is the stored header of a named definition set.
type DefinitionSet struct {
	ID        types.DefinitionSetID `db:"set_id"`
	Name      string                `db:"name"`
	CreatedAt string                `db:"created_at"`
	Size      int                   `db:"size"`
}

// Created parses CreatedAt, returning the zero time when it is unreadable.
func (s DefinitionSet) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

type definitionRow struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// DefinitionStore persists definition sets. Values are stored as JSON text
// so they reload with the same shapes as decoded events.
type DefinitionStore struct {
	q *Queries
}

// NewDefinitionStore loads the named queries for db.
func NewDefinitionStore(db *sqlx.DB) (*DefinitionStore, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &DefinitionStore{q: q}, nil
}

// Save replaces the set called name with values and returns the new set id.
// Readers observe either the old or the new set, never a mix.
func (s *DefinitionStore) Save(ctx context.Context, name string, values map[string]any) (types.DefinitionSetID, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: definition set name is empty", types.ErrInvalidArgument)
	}

	encoded := make(map[string]string, len(values))
	for k, v := range values {
		if err := validDefinitionName(k); err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: definition %q is not JSON-encodable: %v", types.ErrInvalidArgument, k, err)
		}
		encoded[k] = string(b)
	}

	id := types.NewDefinitionSetID()
	created := types.DefinitionSetIDTime(id).UTC().Format(time.RFC3339Nano)

	err := s.q.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.q.Exec(ctx, tx, "delete-definitions-for-set", name); err != nil {
			return err
		}
		if _, err := s.q.Exec(ctx, tx, "delete-definition-set", name); err != nil {
			return err
		}
		if _, err := s.q.Exec(ctx, tx, "insert-definition-set", string(id), name, created); err != nil {
			return err
		}
		for k, v := range encoded {
			if _, err := s.q.Exec(ctx, tx, "insert-definition", string(id), k, v); err != nil {
				return fmt.Errorf("definition %q: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save definition set %q: %w", name, err)
	}
	return id, nil
}

// Get returns the header of the set called name.
func (s *DefinitionStore) Get(ctx context.Context, name string) (*DefinitionSet, error) {
	var set DefinitionSet
	if err := s.q.Get(ctx, "get-definition-set", &set, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", types.ErrDefinitionSetNotFound, name)
		}
		return nil, fmt.Errorf("failed to query definition set %q: %w", name, err)
	}
	return &set, nil
}

// Load reads the set called name into an immutable definitions map.
func (s *DefinitionStore) Load(ctx context.Context, name string) (*defs.Map, error) {
	set, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	var rows []definitionRow
	if err := s.q.Select(ctx, "list-definitions", &rows, string(set.ID)); err != nil {
		return nil, fmt.Errorf("failed to query definitions of %q: %w", name, err)
	}

	values := make(map[string]any, len(rows))
	for _, r := range rows {
		var v any
		if err := json.Unmarshal([]byte(r.Value), &v); err != nil {
			return nil, fmt.Errorf("definition %q of set %q is corrupt: %w", r.Name, name, err)
		}
		values[r.Name] = v
	}
	return defs.NewMap(values), nil
}

// List returns every stored set ordered by name.
func (s *DefinitionStore) List(ctx context.Context) ([]DefinitionSet, error) {
	var sets []DefinitionSet
	if err := s.q.Select(ctx, "list-definition-sets", &sets); err != nil {
		return nil, fmt.Errorf("failed to list definition sets: %w", err)
	}
	return sets, nil
}

// validDefinitionName rejects names a $reference could never reach.
func validDefinitionName(name string) error {
	if name == "" || strings.Contains(name, ".") {
		return fmt.Errorf("%w: definition name %q must be non-empty and contain no '.'",
			types.ErrInvalidArgument, name)
	}
	return nil
}
