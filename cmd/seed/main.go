package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gorm.io/gorm"
)

type Seeder struct {
	db          *database.DB
	rows        int
	seatsPerRow int
}

// sectionPlan describes one priced block of rows in a seeded venue
type sectionPlan struct {
	name      string
	seatClass string
	price     int64
	rows      int
}

func main() {
	var (
		clean       = flag.Bool("clean", true, "truncate service tables before seeding")
		rows        = flag.Int("rows", 6, "rows per section")
		seatsPerRow = flag.Int("seats-per-row", 12, "seats in each row")
	)
	flag.Parse()

	fmt.Println("🌱 Starting Boxoffice Database Seeder...")
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize database and make sure the schema exists
	models := []interface{}{&events.Event{}, &seats.Seat{}, &seats.SeatHold{}}
	db, err := database.InitDB(cfg, append(models, orders.Models()...)...)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, rows: *rows, seatsPerRow: *seatsPerRow}

	if *clean {
		fmt.Println("\n🧹 Cleaning database...")
		if err := seeder.CleanDatabase(); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
		fmt.Println("✅ Database cleaned successfully")
	}

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates every table the service owns, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"payments",
		"order_items",
		"orders",
		"seat_holds",
		"seats",
		"events",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds events in each sales state with a priced seat map
func (s *Seeder) SeedAll(ctx context.Context) error {
	now := time.Now().UTC()
	salesOpened := now.Add(-24 * time.Hour)
	salesOpen := now.Add(7 * 24 * time.Hour)

	sampleEvents := []events.Event{
		{
			Name:         "Midnight Orchestra Live",
			Venue:        "Grand Theater",
			Status:       events.StatusOnSale,
			SalesStartAt: &salesOpened,
			StartsAt:     now.Add(30 * 24 * time.Hour),
		},
		{
			Name:     "Go Systems Conference",
			Venue:    "Convention Hall B",
			Status:   events.StatusOnSale,
			StartsAt: now.Add(14 * 24 * time.Hour),
		},
		{
			Name:         "Winter Comedy Night",
			Venue:        "Grand Theater",
			Status:       events.StatusOnSale,
			SalesStartAt: &salesOpen,
			StartsAt:     now.Add(45 * 24 * time.Hour),
		},
		{
			Name:     "Spring Gala (draft)",
			Venue:    "Riverside Pavilion",
			Status:   events.StatusDraft,
			StartsAt: now.Add(90 * 24 * time.Hour),
		},
	}

	plan := []sectionPlan{
		{name: "Premium", seatClass: "PREMIUM", price: 12000, rows: s.rows / 2},
		{name: "Standard", seatClass: "STANDARD", price: 6500, rows: s.rows - s.rows/2},
	}

	fmt.Println("  🎪 Seeding events...")
	for i := range sampleEvents {
		event := &sampleEvents[i]
		event.ID = uuid.New()
		if err := s.db.PostgreSQL.WithContext(ctx).Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event %s: %w", event.Name, err)
		}

		count, err := s.createSeats(ctx, event.ID, plan)
		if err != nil {
			return err
		}
		fmt.Printf("    ✅ %s (%s): %d seats, id %s\n", event.Name, event.Status, count, event.ID)
	}

	return nil
}

// createSeats lays out rows A, B, C... across the sections in order
func (s *Seeder) createSeats(ctx context.Context, eventID uuid.UUID, plan []sectionPlan) (int, error) {
	var batch []seats.Seat
	row := 0
	for _, section := range plan {
		for r := 0; r < section.rows; r++ {
			rowName := string(rune('A' + row))
			row++
			for n := 1; n <= s.seatsPerRow; n++ {
				batch = append(batch, seats.Seat{
					ID:        uuid.New(),
					EventID:   eventID,
					Section:   section.name,
					Row:       rowName,
					Number:    fmt.Sprintf("%d", n),
					SeatClass: section.seatClass,
					Price:     section.price,
					Status:    seats.StatusAvailable,
				})
			}
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := s.db.PostgreSQL.WithContext(ctx).CreateInBatches(batch, 200).Error; err != nil {
		return 0, fmt.Errorf("failed to create seats for event %s: %w", eventID, err)
	}
	return len(batch), nil
}
