package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepoint/booking-service/internal/booking"
	"github.com/carepoint/booking-service/internal/config"
	"github.com/carepoint/booking-service/internal/db"
)

// The simulator hammers a deliberately small set of (date, slot) pairs so
// that most requests race each other, then verifies the no-double-booking
// invariant directly against the store.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	HoldRatio   float64 // remainder goes to confirms
	TargetDays  int
	TargetSlots int
	PostgresDSN string
}

type target struct {
	Date string
	Time string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Simulator struct {
	config  SimConfig
	targets []target
	client  *http.Client
	holds   OperationMetrics
	confirm OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	log.Printf("config: duration=%s workers=%d hold_ratio=%.2f days=%d slots=%d",
		cfg.Duration, cfg.Workers, cfg.HoldRatio, cfg.TargetDays, cfg.TargetSlots)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config:  cfg,
		targets: buildTargets(cfg.TargetDays, cfg.TargetSlots),
		client:  &http.Client{Timeout: 10 * time.Second},
	}

	log.Printf("racing %d workers over %d (date, slot) targets", cfg.Workers, len(sim.targets))

	sim.Run()
	sim.PrintReport()

	if err := verifyInvariant(cfg.PostgresDSN); err != nil {
		log.Fatalf("INVARIANT VIOLATED: %v", err)
	}
	log.Println("invariant holds: no slot has more than one active booking")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		HoldRatio:   getFloat("SIM_HOLD_RATIO", 0.5),
		TargetDays:  getInt("SIM_TARGET_DAYS", 2),
		TargetSlots: getInt("SIM_TARGET_SLOTS", 4),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

// buildTargets picks the first bookable days (skipping Sundays) and the
// first few slots of each, so contention stays high.
func buildTargets(days, slots int) []target {
	if slots > len(booking.TimeSlots) {
		slots = len(booking.TimeSlots)
	}

	var targets []target
	day := time.Now().AddDate(0, 0, 1)
	for d := 0; d < days; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Sunday {
			continue
		}
		for s := 0; s < slots; s++ {
			targets = append(targets, target{
				Date: day.Format(booking.DateFormat),
				Time: string(booking.TimeSlots[s]),
			})
		}
		d++
	}
	return targets
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				tgt := s.targets[rand.Intn(len(s.targets))]
				if rand.Float64() < s.config.HoldRatio {
					s.placeHold(ctx, tgt)
				} else {
					s.confirmAppointment(ctx, tgt)
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Simulator) placeHold(ctx context.Context, tgt target) {
	payload := map[string]string{
		"date":  tgt.Date,
		"time":  tgt.Time,
		"name":  gofakeit.Name(),
		"email": gofakeit.Email(),
	}
	status, latency, err := s.post(ctx, "/holds", payload)
	s.holds.Record(latency, err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) confirmAppointment(ctx context.Context, tgt target) {
	payload := map[string]string{
		"date":    tgt.Date,
		"time":    tgt.Time,
		"name":    gofakeit.Name(),
		"email":   gofakeit.Email(),
		"phone":   gofakeit.Phone(),
		"service": "General Consultation",
		"message": "simulated booking",
	}
	status, latency, err := s.post(ctx, "/appointments", payload)
	s.confirm.Record(latency, err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) post(ctx context.Context, path string, payload any) (int, time.Duration, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, latency, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOp("place_hold", &s.holds)
	printOp("confirm_appointment", &s.confirm)
}

func printOp(name string, om *OperationMetrics) {
	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("%-20s total=%d success=%d conflict=%d error=%d\n",
		name, om.Total, om.Success, om.Conflict, om.Error)
	fmt.Printf("%-20s avg=%s min=%s max=%s p50=%s p95=%s\n",
		"", avg, min, max, p50, p95)
}

// verifyInvariant asks the store directly whether any (date, slot) pair
// ended up with more than one active booking.
func verifyInvariant(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	return checkNoDoubleBookings(ctx, pool)
}

func checkNoDoubleBookings(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT slot_date, slot_time, count(*)
		FROM slot_bookings
		WHERE status = 'active'
		GROUP BY slot_date, slot_time
		HAVING count(*) > 1
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var violations int
	for rows.Next() {
		var date time.Time
		var slot string
		var n int64
		if err := rows.Scan(&date, &slot, &n); err != nil {
			return err
		}
		log.Printf("double booking: date=%s slot=%s active=%d", date.Format(booking.DateFormat), slot, n)
		violations++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("%d slots with multiple active bookings", violations)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
