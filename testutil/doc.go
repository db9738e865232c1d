// Package testutil provides helpers for seeding demo collections.
//
// This package is intended for tests, recovery drills, and the CLI demo
// wiring only.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 384)
//	rng.FillUniform(vec) // uniform [0, 1)
//
// # Demo Collections
//
//	err := testutil.SeedCollection(ctx, store, "articles", 2000)
//
// SeedCollection creates a collection with the demo layout (five scalar
// fields plus a 384-dimension embedding), four named partitions and an
// IVF_FLAT index, then fills it with deterministic synthetic documents.
package testutil
