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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ReadRatio    float64
	PatientLimit int
	Days         int
	PostgresDSN  string
	Location     *time.Location
	DayStart     time.Duration
	DayEnd       time.Duration
}

type serviceRef struct {
	ID            uuid.UUID
	Minutes       int
	Professionals []uuid.UUID
}

type DataPool struct {
	Patients []uuid.UUID
	Rooms    []uuid.UUID
	Services []serviceRef
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

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking  OperationMetrics
	ListDay  OperationMetrics
	Calendar OperationMetrics
	// Conflicts by error code returned on 409
	mu        sync.Mutex
	Conflicts map[string]int
}

func (m *Metrics) countConflict(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Conflicts == nil {
		m.Conflicts = map[string]int{}
	}
	m.Conflicts[code]++
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
	days    []time.Time
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	logger, err := logging.New(baseCfg.Env, "simulate")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking_ratio", cfg.BookingRatio),
		zap.Float64("read_ratio", cfg.ReadRatio),
	)

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}

	logger.Info("data loaded",
		zap.Int("patients", len(dataPool.Patients)),
		zap.Int("rooms", len(dataPool.Rooms)),
		zap.Int("services", len(dataPool.Services)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		days:   upcomingWeekdays(time.Now().In(cfg.Location), cfg.Days),
	}

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()

	auditCtx, cancelAudit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelAudit()
	if err := auditDoubleBookings(auditCtx, pgPool); err != nil {
		logger.Fatal("double-booking audit failed", zap.Error(err))
	}
	fmt.Println("Audit: no overlapping active appointments share a room or professional")
}

func loadConfig(baseCfg config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.7),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		Days:         getInt("SIM_DAYS", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
		Location:     baseCfg.Location,
		DayStart:     baseCfg.DayStart,
		DayEnd:       baseCfg.DayEnd,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	if err := collectIDs(ctx, pool, &dataPool.Patients, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if err := collectIDs(ctx, pool, &dataPool.Rooms, `SELECT id FROM rooms ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT s.id, s.default_duration_minutes,
		       COALESCE(array_agg(ps.professional_id) FILTER (WHERE ps.professional_id IS NOT NULL), '{}')
		FROM services s
		LEFT JOIN professional_services ps ON ps.service_id = s.id
		GROUP BY s.id, s.default_duration_minutes
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref serviceRef
		if err := rows.Scan(&ref.ID, &ref.Minutes, &ref.Professionals); err != nil {
			return nil, err
		}
		dataPool.Services = append(dataPool.Services, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Services) == 0 {
		return nil, fmt.Errorf("no services loaded")
	}

	return dataPool, nil
}

func collectIDs(ctx context.Context, pool *pgxpool.Pool, dst *[]uuid.UUID, query string, args ...any) error {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		*dst = append(*dst, id)
	}
	return rows.Err()
}

// upcomingWeekdays returns local midnight of the next n Monday-to-Friday days.
func upcomingWeekdays(now time.Time, n int) []time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var out []time.Time
	for len(out) < n {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		out = append(out, day)
	}
	return out
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doListDay(ctx, rng)
			} else {
				s.doCalendar(ctx, rng)
			}
		}
	}
}

// doBooking posts an appointment on a 15-minute grid, so workers collide on
// rooms and professionals often.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	svc := s.pool.Services[rng.Intn(len(s.pool.Services))]
	day := s.days[rng.Intn(len(s.days))]

	slots := int((s.config.DayEnd - s.config.DayStart) / (15 * time.Minute))
	if slots <= 0 {
		return
	}
	start := day.Add(s.config.DayStart + time.Duration(rng.Intn(slots))*15*time.Minute)
	end := start.Add(time.Duration(svc.Minutes) * time.Minute)

	reqBody := map[string]any{
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"service_id": svc.ID.String(),
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
	}
	if len(s.pool.Rooms) > 0 {
		reqBody["room_id"] = s.pool.Rooms[rng.Intn(len(s.pool.Rooms))].String()
	}
	if len(svc.Professionals) > 0 {
		reqBody["professional_ids"] = []string{svc.Professionals[rng.Intn(len(svc.Professionals))].String()}
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Admin", "true")

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
		case http.StatusConflict:
			conflict = true
			var errResp struct {
				Error string `json:"error"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &errResp) == nil {
				s.metrics.countConflict(errResp.Error)
			}
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doListDay(ctx context.Context, rng *rand.Rand) {
	s.doGet(ctx, &s.metrics.ListDay, fmt.Sprintf("%s/appointments?date=%s", s.config.APIBaseURL, s.randomDate(rng)))
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	s.doGet(ctx, &s.metrics.Calendar, fmt.Sprintf("%s/calendar?date=%s", s.config.APIBaseURL, s.randomDate(rng)))
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return s.days[rng.Intn(len(s.days))].Format("2006-01-02")
}

func (s *Simulator) doGet(ctx context.Context, om *OperationMetrics, url string) {
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	om.Record(latency, success, false)
}

// auditDoubleBookings fails if any two active appointments overlap on a
// shared room or professional.
func auditDoubleBookings(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b ON a.id < b.id
		WHERE a.status <> 'cancelled'
		  AND b.status <> 'cancelled'
		  AND a.start_time < b.end_time
		  AND b.start_time < a.end_time
		  AND ((a.room_id IS NOT NULL AND a.room_id = b.room_id)
		       OR a.professional_ids && b.professional_ids)
	`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%d double-booked appointment pairs found", count)
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("List day", &s.metrics.ListDay)
	printOperationReport("Calendar", &s.metrics.Calendar)

	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	if len(s.metrics.Conflicts) > 0 {
		codes := make([]string, 0, len(s.metrics.Conflicts))
		for code := range s.metrics.Conflicts {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Println("Booking conflicts by reason:")
		for _, code := range codes {
			fmt.Printf("  %s: %d\n", code, s.metrics.Conflicts[code])
		}
		fmt.Println()
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
