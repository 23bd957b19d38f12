package counter

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Runs against a real server when COUNTER_TEST_MONGO_URL is set.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	url := os.Getenv("COUNTER_TEST_MONGO_URL")
	if url == "" {
		t.Skip("COUNTER_TEST_MONGO_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	database := client.Database(fmt.Sprintf("counter_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = database.Drop(context.Background()) })

	store := NewMongoStore(database)
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return store
}

func TestMongoStoreConcurrentFirstIncrements(t *testing.T) {
	store := newMongoTestStore(t)
	svc := NewService(store, nil, Config{Timezone: "UTC", MaxAttempts: 5})
	ctx := context.Background()

	// Every caller races to create the same document.
	const callers = 32
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number, err := svc.NextInvoiceNumber(ctx, "mongo-branch", "Temple Meals")
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = number
		}(i)
	}
	wg.Wait()

	sort.Strings(results)
	for i, got := range results {
		if expected := fmt.Sprintf("%03d", i+1); got != expected {
			t.Fatalf("expected %s, got %s", expected, got)
		}
	}
}

func TestMongoStoreScenario(t *testing.T) {
	store := newMongoTestStore(t)
	svc := NewService(store, nil, Config{Timezone: "UTC"})
	ctx := context.Background()

	expected := []string{"001", "002", "KOT-001", "003", "KOT-002"}
	got := []string{
		must(t)(svc.NextBillNumber(ctx, "B", "Restaurant")),
		must(t)(svc.NextBillNumber(ctx, "B", "Restaurant")),
		must(t)(svc.NextKOTNumber(ctx, "B")),
		must(t)(svc.NextBillNumber(ctx, "B", "Restaurant")),
		must(t)(svc.NextKOTNumber(ctx, "B")),
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("call %d: expected %s, got %s", i+1, expected[i], got[i])
		}
	}

	rows, err := svc.CurrentCounters(ctx, "B", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].LastBillNumber != 3 || rows[0].LastInvoiceNumber != 3 || rows[0].LastKOTNumber != 2 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if _, err := svc.Reset(ctx, ResetRequest{Date: svc.Today(), BranchID: "B", Actor: "test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := must(t)(svc.NextBillNumber(ctx, "B", "Restaurant")); got != "001" {
		t.Fatalf("expected 001 after reset, got %s", got)
	}
}
