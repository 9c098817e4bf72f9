package memory

import (
	"errors"
	"fmt"

	"gridrank/pkg/domain"
)

var errMissingRow = errors.New("row not found")

// table stores rows of one kind with an ID index, a natural-key index, the
// insertion order and, for season-scoped kinds, an ordered per-season index.
// Rows are cloned on the way in and out so callers never share memory with
// the stored copy.
type table[T any] struct {
	entity domain.EntityType
	idOf   func(T) string
	keyOf  func(T) string
	// seasonOf is nil for kinds that are not season scoped.
	seasonOf func(T) string
	cloneRow func(T) T

	byID     map[string]T
	byKey    map[string]string
	order    []string
	bySeason map[string][]string
}

func newTable[T any](entity domain.EntityType, idOf, keyOf, seasonOf func(T) string, cloneRow func(T) T) *table[T] {
	if cloneRow == nil {
		cloneRow = func(row T) T { return row }
	}
	t := &table[T]{entity: entity, idOf: idOf, keyOf: keyOf, seasonOf: seasonOf, cloneRow: cloneRow}
	t.drop()
	return t
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.cloneRow(row), true
}

func (t *table[T]) find(key string) (T, bool) {
	id, ok := t.byKey[key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.get(id)
}

func (t *table[T]) has(id, key string) bool {
	_, byID := t.byID[id]
	_, byKey := t.byKey[key]
	return byID || byKey
}

func (t *table[T]) all() []T {
	return t.collect(t.order)
}

func (t *table[T]) forSeason(seasonID string) []T {
	return t.collect(t.bySeason[seasonID])
}

func (t *table[T]) collect(ids []string) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.cloneRow(t.byID[id]))
	}
	return out
}

func (t *table[T]) len() int { return len(t.byID) }

// add inserts a new row. Nothing is written when the ID or natural key is
// already taken.
func (t *table[T]) add(row T) error {
	id, key := t.idOf(row), t.keyOf(row)
	if _, ok := t.byID[id]; ok {
		return &domain.DuplicateKeyError{Entity: t.entity, Key: "id=" + id}
	}
	if _, ok := t.byKey[key]; ok {
		return &domain.DuplicateKeyError{Entity: t.entity, Key: key}
	}
	t.byID[id] = t.cloneRow(row)
	t.byKey[key] = id
	t.order = append(t.order, id)
	if t.seasonOf != nil {
		season := t.seasonOf(row)
		t.bySeason[season] = append(t.bySeason[season], id)
	}
	return nil
}

// update rewrites the row with the given ID through fn. The natural key index
// follows key changes and rejects keys held by another row.
func (t *table[T]) update(id string, fn func(T) (T, error)) error {
	current, ok := t.byID[id]
	if !ok {
		return errMissingRow
	}
	next, err := fn(t.cloneRow(current))
	if err != nil {
		return err
	}
	if t.idOf(next) != id {
		return fmt.Errorf("%s %q: update changed the id to %q", t.entity, id, t.idOf(next))
	}
	oldKey, newKey := t.keyOf(current), t.keyOf(next)
	if oldKey != newKey {
		if holder, taken := t.byKey[newKey]; taken && holder != id {
			return &domain.DuplicateKeyError{Entity: t.entity, Key: newKey}
		}
		delete(t.byKey, oldKey)
		t.byKey[newKey] = id
	}
	if t.seasonOf != nil && t.seasonOf(current) != t.seasonOf(next) {
		t.unindexSeason(t.seasonOf(current), id)
		season := t.seasonOf(next)
		t.bySeason[season] = append(t.bySeason[season], id)
	}
	t.byID[id] = t.cloneRow(next)
	return nil
}

// replace drops whatever row holds the new row's natural key, then adds it.
func (t *table[T]) replace(row T) error {
	if id, ok := t.byKey[t.keyOf(row)]; ok {
		t.remove(id)
	}
	return t.add(row)
}

func (t *table[T]) remove(id string) {
	row, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	delete(t.byKey, t.keyOf(row))
	t.order = without(t.order, id)
	if t.seasonOf != nil {
		t.unindexSeason(t.seasonOf(row), id)
	}
}

func (t *table[T]) unindexSeason(season, id string) {
	ids := without(t.bySeason[season], id)
	if len(ids) == 0 {
		delete(t.bySeason, season)
		return
	}
	t.bySeason[season] = ids
}

func (t *table[T]) drop() {
	t.byID = make(map[string]T)
	t.byKey = make(map[string]string)
	t.order = nil
	t.bySeason = make(map[string][]string)
}

func (t *table[T]) clone() *table[T] {
	out := &table[T]{
		entity:   t.entity,
		idOf:     t.idOf,
		keyOf:    t.keyOf,
		seasonOf: t.seasonOf,
		cloneRow: t.cloneRow,
		byID:     make(map[string]T, len(t.byID)),
		byKey:    make(map[string]string, len(t.byKey)),
		order:    append([]string(nil), t.order...),
		bySeason: make(map[string][]string, len(t.bySeason)),
	}
	for id, row := range t.byID {
		out.byID[id] = t.cloneRow(row)
	}
	for key, id := range t.byKey {
		out.byKey[key] = id
	}
	for season, ids := range t.bySeason {
		out.bySeason[season] = append([]string(nil), ids...)
	}
	return out
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
