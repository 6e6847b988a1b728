// Command seed-events fills a local event store with a synthetic month of bed
// occupancy and cleaning history, so `bedcast train` and `bedcast serve` have
// data to work with during development.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/storage"
)

var wards = []string{"ICU", "Emergency", "General", "Pediatrics", "Surgery", "Cardiology", "Maternity"}

// Typical stay lengths in hours, roughly matching the serving defaults so the
// seeded data looks plausible next to them.
var stayHours = map[string]float64{
	"ICU":        48, "Emergency": 20, "General": 36, "Pediatrics": 28,
	"Surgery":    34, "Cardiology": 42, "Maternity": 50,
}

func main() {
	var (
		driver = flag.String("driver", "sqlite", "storage driver")
		dsn    = flag.String("dsn", "data/bedcast.db", "storage DSN")
		days   = flag.Int("days", 30, "days of history to generate")
		seed   = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	store, err := storage.NewStore(storage.Config{Driver: *driver, DSN: *dsn})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatalf("init store: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC()
	start := now.Add(-time.Duration(*days) * 24 * time.Hour)

	var occupancy, cleaning int
	for _, ward := range wards {
		for bed := 0; bed < 4; bed++ {
			resource := ward + "-bed-" + string(rune('A'+bed))
			cursor := start.Add(time.Duration(rng.Intn(24)) * time.Hour)
			for cursor.Before(now.Add(-24 * time.Hour)) {
				stay := stayHours[ward] * (0.6 + 0.8*rng.Float64())
				release := cursor.Add(time.Duration(stay * float64(time.Hour)))

				appendEvent(ctx, store, models.ClassOccupancy, models.Event{
					ResourceID: resource, Ward: ward, Kind: models.ChangeStart, Timestamp: cursor,
				})
				appendEvent(ctx, store, models.ClassOccupancy, models.Event{
					ResourceID: resource, Ward: ward, Kind: models.ChangeEnd, Timestamp: release,
				})
				occupancy += 2

				cleanStart := release.Add(time.Duration(5+rng.Intn(20)) * time.Minute)
				cleanMinutes := 20 + rng.Float64()*30
				appendEvent(ctx, store, models.ClassCleaning, models.Event{
					ResourceID: resource, Ward: ward, Kind: models.ChangeStart, Timestamp: cleanStart,
					EstimateMinutes: 30,
				})
				appendEvent(ctx, store, models.ClassCleaning, models.Event{
					ResourceID: resource, Ward: ward, Kind: models.ChangeEnd,
					Timestamp: cleanStart.Add(time.Duration(cleanMinutes * float64(time.Minute))),
				})
				cleaning += 2

				cursor = cleanStart.Add(time.Duration(cleanMinutes*float64(time.Minute)) + time.Duration(1+rng.Intn(12))*time.Hour)
			}
		}
	}

	log.Printf("seeded %d occupancy and %d cleaning events over %d days", occupancy, cleaning, *days)
}

func appendEvent(ctx context.Context, store storage.Store, class models.EventClass, ev models.Event) {
	if err := store.AppendEvent(ctx, class, ev); err != nil {
		log.Fatalf("append event: %v", err)
	}
}
