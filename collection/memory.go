package collection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecback/schema"
)

// MemoryStore is an in-memory Store implementation.
//
// It keeps rows in insertion order (the scan order), validates inserts
// against the declared schema, and answers searches by brute-force L2 over
// the requested vector field. It is the reference backend for tests,
// recovery drills, and the demo CLI wiring; it is not an ANN engine.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection

	insertHook  func(name, partition string, rows []Record) error
	insertCalls atomic.Int64
}

type memCollection struct {
	desc       schema.Descriptor
	partitions map[string]schema.Partition
	partOrder  []string
	indexes    map[string]schema.Index
	rows       []memRow
	nextID     int64
}

type memRow struct {
	partition string
	rec       Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// SetInsertHook installs a hook invoked before every Insert. A non-nil
// return fails the insert without mutating the store. Tests use it to
// inject write failures.
func (m *MemoryStore) SetInsertHook(hook func(name, partition string, rows []Record) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertHook = hook
}

// InsertCalls returns the number of Insert invocations, including failed ones.
func (m *MemoryStore) InsertCalls() int64 { return m.insertCalls.Load() }

// ScanIncludesVectors marks MemoryStore as capable of returning vector
// fields inline with scalars in a single scan.
func (m *MemoryStore) ScanIncludesVectors() bool { return true }

// CreateCollection creates an empty collection with the given layout.
func (m *MemoryStore) CreateCollection(_ context.Context, name string, d schema.Descriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("create collection %q: %w", name, ErrExists)
	}

	m.collections[name] = &memCollection{
		desc: d.Clone(),
		partitions: map[string]schema.Partition{
			schema.DefaultPartitionName: {Name: schema.DefaultPartitionName},
		},
		partOrder: []string{schema.DefaultPartitionName},
		indexes:   make(map[string]schema.Index),
	}
	return nil
}

// DropCollection removes a collection and all of its data.
func (m *MemoryStore) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("drop collection %q: %w", name, ErrNotFound)
	}
	delete(m.collections, name)
	return nil
}

// HasCollection reports whether a collection exists.
func (m *MemoryStore) HasCollection(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.collections[name]
	return ok, nil
}

// DescribeSchema returns the field layout of a collection.
func (m *MemoryStore) DescribeSchema(_ context.Context, name string) (schema.Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return schema.Descriptor{}, err
	}
	return c.desc.Clone(), nil
}

// ListPartitions returns all partitions in creation order, default first.
func (m *MemoryStore) ListPartitions(_ context.Context, name string) ([]schema.Partition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Partition, 0, len(c.partOrder))
	for _, pn := range c.partOrder {
		out = append(out, c.partitions[pn])
	}
	return out, nil
}

// CreatePartition adds a named partition to a collection.
func (m *MemoryStore) CreatePartition(_ context.Context, name string, p schema.Partition) error {
	if p.Name == "" {
		return fmt.Errorf("create partition: empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.collection(name)
	if err != nil {
		return err
	}
	if _, ok := c.partitions[p.Name]; ok {
		return fmt.Errorf("create partition %q: %w", p.Name, ErrPartitionExists)
	}
	c.partitions[p.Name] = p
	c.partOrder = append(c.partOrder, p.Name)
	return nil
}

// DescribeIndexes returns the declared indexes keyed by field name.
func (m *MemoryStore) DescribeIndexes(_ context.Context, name string) (map[string]schema.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	out := make(map[string]schema.Index, len(c.indexes))
	for k, v := range c.indexes {
		out[k] = v
	}
	return out, nil
}

// CreateIndex declares an index on a field. MemoryStore records the
// declaration; searches stay brute force.
func (m *MemoryStore) CreateIndex(_ context.Context, name, field string, idx schema.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.collection(name)
	if err != nil {
		return err
	}
	if _, ok := c.desc.Field(field); !ok {
		return fmt.Errorf("create index: unknown field %q", field)
	}
	c.indexes[field] = idx
	return nil
}

// Insert appends rows to a partition ("" means the default partition).
func (m *MemoryStore) Insert(_ context.Context, name, partition string, rows []Record) (int64, error) {
	if partition == "" {
		partition = schema.DefaultPartitionName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertCalls.Add(1)
	if m.insertHook != nil {
		if err := m.insertHook(name, partition, rows); err != nil {
			return 0, err
		}
	}

	c, err := m.collection(name)
	if err != nil {
		return 0, err
	}
	if _, ok := c.partitions[partition]; !ok {
		return 0, fmt.Errorf("insert into %q: %w", partition, ErrPartitionNotFound)
	}

	pk, _ := c.desc.PrimaryField()

	staged := make([]memRow, 0, len(rows))
	for i, rec := range rows {
		cp := rec.Clone()

		if pk.AutoID {
			c.nextID++
			cp[pk.Name] = c.nextID
		} else if _, ok := cp[pk.Name]; !ok {
			return 0, fmt.Errorf("row %d: missing primary key %q", i, pk.Name)
		}

		if err := validateRow(c.desc, cp); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		staged = append(staged, memRow{partition: partition, rec: cp})
	}

	c.rows = append(c.rows, staged...)
	return int64(len(staged)), nil
}

func validateRow(d schema.Descriptor, rec Record) error {
	for _, f := range d.Fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case schema.FieldTypeFloatVector:
			vec, ok := v.([]float32)
			if !ok {
				return fmt.Errorf("field %q: want []float32, got %T", f.Name, v)
			}
			if len(vec) != f.Dim {
				return fmt.Errorf("field %q: dim %d, want %d", f.Name, len(vec), f.Dim)
			}
		case schema.FieldTypeBinaryVector:
			raw, ok := v.([]byte)
			if !ok {
				return fmt.Errorf("field %q: want []byte, got %T", f.Name, v)
			}
			if len(raw)*8 != f.Dim {
				return fmt.Errorf("field %q: %d bits, want %d", f.Name, len(raw)*8, f.Dim)
			}
		}
	}
	return nil
}

// ScanPage returns up to limit records starting at offset in insertion order.
func (m *MemoryStore) ScanPage(_ context.Context, name string, offset, limit int, fields []string) ([]Record, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("scan %q: invalid page offset=%d limit=%d", name, offset, limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	if offset >= len(c.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(c.rows) {
		end = len(c.rows)
	}

	out := make([]Record, 0, end-offset)
	for _, row := range c.rows[offset:end] {
		out = append(out, project(row.rec, fields))
	}
	return out, nil
}

func project(rec Record, fields []string) Record {
	if fields == nil {
		return rec.Clone()
	}
	out := make(Record, len(fields))
	src := rec.Clone()
	for _, f := range fields {
		if v, ok := src[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Search runs a brute-force L2 nearest-neighbor query on a vector field.
// The declared index metric is not consulted; callers needing metric
// fidelity should use a real backend.
func (m *MemoryStore) Search(_ context.Context, name, field string, vector []float32, topK int, filter string) ([]SearchHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("search %q: topK must be positive", name)
	}

	expr, err := parseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	f, ok := c.desc.Field(field)
	if !ok || f.Type != schema.FieldTypeFloatVector {
		return nil, fmt.Errorf("search %q: %q is not a float vector field", name, field)
	}
	if len(vector) != f.Dim {
		return nil, fmt.Errorf("search %q: query dim %d, want %d", name, len(vector), f.Dim)
	}

	var hits []SearchHit
	for _, row := range c.rows {
		if expr != nil && !expr.match(row.rec) {
			continue
		}
		vec, ok := row.rec[field].([]float32)
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{Score: squaredL2(vector, vec), Fields: row.rec.Clone()})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Query returns up to limit records matching a boolean filter expression.
func (m *MemoryStore) Query(_ context.Context, name, filter string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("query %q: limit must be positive", name)
	}

	expr, err := parseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, row := range c.rows {
		if expr != nil && !expr.match(row.rec) {
			continue
		}
		out = append(out, row.rec.Clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetEntityCount returns the number of entities in a collection.
func (m *MemoryStore) GetEntityCount(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(name)
	if err != nil {
		return 0, err
	}
	return int64(len(c.rows)), nil
}

// collection looks up a collection; callers must hold m.mu.
func (m *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return c, nil
}
