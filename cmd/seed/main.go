package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepoint/booking-service/internal/booking"
	"github.com/carepoint/booking-service/internal/db"
)

var services = []string{
	"General Consultation",
	"Teeth Cleaning",
	"Root Canal Treatment",
	"Tooth Extraction",
	"Dental Implant",
	"Teeth Whitening",
	"Braces Consultation",
	"Crown & Bridge",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBlockedDates(context.Background(), pool); err != nil {
		log.Fatalf("seed blocked dates: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedBlockedDates inserts one full-day closure and one partial block in the
// near future so the availability endpoints have something to show.
func seedBlockedDates(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding blocked dates")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	fullDay := time.Now().AddDate(0, 0, 7)
	_, err = tx.Exec(ctx, `
		INSERT INTO blocked_dates (id, block_date, active, reason, blocked_times, created_at, updated_at)
		VALUES ($1, $2, true, 'Practice closed for staff training', '{}', now(), now())
	`, uuid.New(), fullDay.Format(booking.DateFormat))
	if err != nil {
		return err
	}

	partial := time.Now().AddDate(0, 0, 9)
	_, err = tx.Exec(ctx, `
		INSERT INTO blocked_dates (id, block_date, active, reason, blocked_times, created_at, updated_at)
		VALUES ($1, $2, true, 'Surgery scheduled in the morning', $3, now(), now())
	`, uuid.New(), partial.Format(booking.DateFormat),
		[]string{"10:30 AM", "11:00 AM", "11:30 AM"})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("blocked dates seeded")
	return nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d appointments", count)

	const batchSize = 50

	// Spread bookings over the next 30 days, skipping Sundays; track used
	// pairs so the partial unique index never trips during seeding.
	used := make(map[string]struct{})

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			day := time.Now().AddDate(0, 0, gofakeit.Number(1, 30))
			if day.Weekday() == time.Sunday {
				day = day.AddDate(0, 0, 1)
			}
			slot := booking.TimeSlots[gofakeit.Number(0, len(booking.TimeSlots)-1)]

			key := day.Format(booking.DateFormat) + "|" + string(slot)
			if _, taken := used[key]; taken {
				continue
			}
			used[key] = struct{}{}

			apptID := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, name, email, phone, service, slot_date, slot_time, status, message, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, now(), now())
			`, apptID, name, email, gofakeit.Phone(),
				services[gofakeit.Number(0, len(services)-1)],
				day.Format(booking.DateFormat), string(slot), gofakeit.Sentence(8))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO slot_bookings (id, slot_date, slot_time, kind, status, appointment_id, holder_name, holder_email, expires_at, created_at, updated_at)
				VALUES ($1, $2, $3, 'appointment', 'active', $4, $5, $6, NULL, now(), now())
			`, uuid.New(), day.Format(booking.DateFormat), string(slot), apptID, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("appointments seeded: %d/%d", end, count)
	}

	log.Println("appointments seeded")
	return nil
}
