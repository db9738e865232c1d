package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/schema"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// DemoDim is the embedding width of the demo collection.
const DemoDim = 384

// DemoPartitionNames are the named partitions of the demo collection, in
// creation order. The default partition exists implicitly.
var DemoPartitionNames = []string{"region_us", "region_eu", "category_tech", "category_business"}

var demoSources = []string{"web", "mobile", "api", "batch"}

// demoEpoch anchors generated timestamps so a dataset depends only on its
// seed and size, never on the wall clock.
const demoEpoch = int64(1700000000)

// DemoDescriptor returns the field layout of the demo collection: an
// auto-assigned Int64 key, five scalar fields and one 384-dim embedding.
func DemoDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Description: "Demo collection for backup and recovery drills",
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeInt64, IsPrimary: true, AutoID: true},
			{Name: "content", Type: schema.FieldTypeVarChar, MaxLength: 1000},
			{Name: "source", Type: schema.FieldTypeVarChar, MaxLength: 50},
			{Name: "priority", Type: schema.FieldTypeInt32},
			{Name: "timestamp", Type: schema.FieldTypeInt64},
			{Name: "score", Type: schema.FieldTypeFloat},
			{Name: "vector", Type: schema.FieldTypeFloatVector, Dim: DemoDim},
		},
	}
}

// DemoIndex returns the vector index declared on the demo collection.
func DemoIndex() schema.Index {
	return schema.Index{
		Type:   "IVF_FLAT",
		Metric: "COSINE",
		Params: map[string]any{"nlist": 128},
	}
}

// DemoRecords generates n synthetic documents starting at ordinal start.
// The primary key is auto-assigned on insert and deliberately absent here.
func DemoRecords(rng *RNG, start, n int) []collection.Record {
	out := make([]collection.Record, 0, n)
	for i := start; i < start+n; i++ {
		vec := make([]float32, DemoDim)
		rng.FillUniform(vec)

		out = append(out, collection.Record{
			"content":   fmt.Sprintf("Demo document %d for backup and recovery testing", i),
			"source":    demoSources[rng.Intn(len(demoSources))],
			"priority":  int32(1 + rng.Intn(5)),
			"timestamp": demoEpoch + int64(i),
			"score":     float32(1 + rng.Float64()*9),
			"vector":    vec,
		})
	}
	return out
}

// SeedCollection creates the demo collection layout under name and fills it
// with size synthetic documents, batches spread round-robin across the named
// partitions. It fails if the collection already exists.
func SeedCollection(ctx context.Context, store collection.Store, name string, size int) error {
	if err := store.CreateCollection(ctx, name, DemoDescriptor()); err != nil {
		return err
	}
	for _, p := range DemoPartitionNames {
		if err := store.CreatePartition(ctx, name, schema.Partition{Name: p}); err != nil {
			return err
		}
	}
	if err := store.CreateIndex(ctx, name, "vector", DemoIndex()); err != nil {
		return err
	}

	rng := NewRNG(int64(size))

	const batch = 256
	for written, i := 0, 0; written < size; i++ {
		n := min(batch, size-written)
		rows := DemoRecords(rng, written, n)
		partition := DemoPartitionNames[i%len(DemoPartitionNames)]
		if _, err := store.Insert(ctx, name, partition, rows); err != nil {
			return fmt.Errorf("seed %q: %w", name, err)
		}
		written += n
	}
	return nil
}
