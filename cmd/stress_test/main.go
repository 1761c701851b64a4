package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pantry/internal/adapter/storage"
	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	userID        = "stress-user"
	recordCount   = 3
	recordGrams   = 200
	consumeGrams  = 100
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize an in-memory store
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	store := storage.NewSQLStore(db, storage.DialectSQLite)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	session := domain.Session{UserID: userID, Token: "stress"}
	userStore, err := store.StoreFor(session)
	if err != nil {
		log.Fatalf("failed to bind store: %v", err)
	}
	expiry := domain.DateOf(time.Now().AddDate(0, 0, 10))
	for i := 0; i < recordCount; i++ {
		_, err := userStore.Create(ctx, domain.NewRecord{
			Name: "Rice", Category: domain.CategoryGrains, Quantity: recordGrams,
			Unit: domain.UnitGrams, StorageLocation: "pantry", ExpiryDate: expiry,
		})
		if err != nil {
			log.Fatalf("failed to seed record: %v", err)
		}
	}

	// Initialize service
	svc := service.NewInventoryService(store, service.NewReconciler(4, nil),
		service.WithCache(storage.NewRedisAdapter(rdb)))

	view, err := svc.List(ctx, session, service.Query{})
	if err != nil || len(view.Items) != 1 {
		log.Fatalf("expected one merged item, got %d (%v)", len(view.Items), err)
	}
	mergedIDs := view.Items[0].MergedIDs

	// Every request carries the same id, as a client retrying a lost response would.
	requestID := uuid.NewString()

	// Counters
	var successCount atomic.Int32
	var duplicateCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.Consume(ctx, session, requestID, mergedIDs, consumeGrams)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicateCount.Add(1)
			default:
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	duplicates := duplicateCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Merged Records:   %d x %d Grams\n", recordCount, recordGrams)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Applied:          %d\n", success)
	fmt.Printf("Duplicates:       %d\n", duplicates)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == 1 && duplicates == int32(totalRequests-1) {
		fmt.Printf("PASS: Exactly 1 consume applied, %d rejected as duplicates\n", totalRequests-1)
	} else {
		fmt.Printf("FAIL: Expected 1 applied/%d duplicates, got %d/%d (%d failed)\n",
			totalRequests-1, success, duplicates, fail)
	}

	// Verify the remaining quantity
	after, err := svc.List(ctx, session, service.Query{})
	if err != nil {
		log.Fatalf("failed to list inventory: %v", err)
	}
	want := float64(recordCount*recordGrams - consumeGrams)
	if len(after.Items) == 1 && after.Items[0].Quantity == want {
		fmt.Printf("PASS: %g Grams left in %d record(s)\n", want, after.Items[0].MergedCount)
	} else {
		fmt.Printf("FAIL: Expected %g Grams in one item, got %+v\n", want, after.Items)
	}
}
