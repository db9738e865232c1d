package vecback_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/vecback"
	"github.com/hupe1980/vecback/blobstore"
	"github.com/hupe1980/vecback/collection"
	"github.com/hupe1980/vecback/drill"
	"github.com/hupe1980/vecback/testutil"
)

// Example demonstrates the full backup, restore and verify cycle against an
// in-memory store.
func Example() {
	ctx := context.Background()

	store := collection.NewMemoryStore()
	if err := testutil.SeedCollection(ctx, store, "articles", 500); err != nil {
		log.Fatal(err)
	}

	client := vecback.New(store, blobstore.NewMemoryStore())

	m, err := client.CreateBackup(ctx, "articles", "nightly")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("backed up entities:", m.EntityCount)

	report, err := client.RestoreBackup(ctx, "nightly", "articles_dr")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("restore state:", report.State)
	fmt.Println("restored rows:", report.Inserted)

	res, err := client.VerifyBackup(ctx, "nightly")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("backup intact:", res.Passed)

	// Output:
	// backed up entities: 500
	// restore state: completed
	// restored rows: 500
	// backup intact: true
}

// Example_recoveryDrill demonstrates rehearsing recovery against a
// throwaway collection.
func Example_recoveryDrill() {
	ctx := context.Background()

	store := collection.NewMemoryStore()
	if err := testutil.SeedCollection(ctx, store, "articles", 200); err != nil {
		log.Fatal(err)
	}

	client := vecback.New(store, blobstore.NewMemoryStore())

	if _, err := client.CreateBackup(ctx, "articles", "nightly"); err != nil {
		log.Fatal(err)
	}

	report, err := client.RunDrill(ctx, drill.DataCorruptionScenario(), "nightly")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("drill passed:", report.Passed)
	for _, step := range report.Steps {
		fmt.Println(step.Name, step.Status)
	}

	// Output:
	// drill passed: true
	// backup_verification succeeded
	// environment_preparation succeeded
	// data_restoration succeeded
	// integrity_verification succeeded
	// service_verification succeeded
	// cleanup succeeded
}
