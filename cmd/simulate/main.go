// Booking-storm simulator: every worker in a round tries to book the exact
// same (doctor, date, time) slot through the API. A healthy deployment
// admits exactly one success per round and turns the rest away with
// slot_unavailable.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/patient-portal/internal/config"
	"github.com/careloop/patient-portal/internal/db"
	"github.com/careloop/patient-portal/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	Workers      int
	Rounds       int
	PatientLimit int
	PostgresDSN  string
}

type Target struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     schedule.TimeOfDay
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
	config   SimConfig
	patients []uuid.UUID
	pgPool   *pgxpool.Pool
	client   *http.Client
	metrics  OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: workers=%d rounds=%d api=%s", cfg.Workers, cfg.Rounds, cfg.APIBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	patients, err := loadPatients(ctx, pgPool, cfg.PatientLimit)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	log.Printf("loaded %d patients", len(patients))

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config:   cfg,
		patients: patients,
		pgPool:   pgPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run(context.Background())
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:      getInt("SIM_WORKERS", 20),
		Rounds:       getInt("SIM_ROUNDS", 10),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	return nil
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var patients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		patients = append(patients, id)
	}

	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}

	return patients, nil
}

// pickTarget finds an unbooked on-grid slot in the next two weeks.
func (s *Simulator) pickTarget(ctx context.Context) (*Target, error) {
	for dayOffset := 1; dayOffset <= 14; dayOffset++ {
		date := time.Now().AddDate(0, 0, dayOffset)

		var doctorID uuid.UUID
		var start, slotMinutes int
		err := s.pgPool.QueryRow(ctx, `
			SELECT doctor_id, start_minute, slot_minutes
			FROM availability_rules
			WHERE weekday = $1 AND active
			ORDER BY random()
			LIMIT 1
		`, int(date.Weekday())).Scan(&doctorID, &start, &slotMinutes)
		if err != nil {
			continue
		}

		at := schedule.TimeOfDay(start)
		scheduledAt := at.At(date)

		var taken int
		err = s.pgPool.QueryRow(ctx, `
			SELECT count(*) FROM appointments
			WHERE doctor_id = $1 AND scheduled_at = $2 AND status <> 'cancelled'
		`, doctorID, scheduledAt).Scan(&taken)
		if err != nil || taken > 0 {
			continue
		}

		return &Target{DoctorID: doctorID, Date: date, Time: at}, nil
	}

	return nil, fmt.Errorf("no free on-grid slot found in the next two weeks")
}

func (s *Simulator) Run(ctx context.Context) {
	for round := 1; round <= s.config.Rounds; round++ {
		target, err := s.pickTarget(ctx)
		if err != nil {
			log.Printf("round %d: %v", round, err)
			return
		}

		successBefore := atomic.LoadInt64(&s.metrics.Success)

		var wg sync.WaitGroup
		for i := 0; i < s.config.Workers; i++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				s.doBooking(ctx, workerID, target)
			}(i)
		}
		wg.Wait()

		winners := atomic.LoadInt64(&s.metrics.Success) - successBefore
		if winners != 1 {
			log.Printf("round %d: ANOMALY: %d winners for doctor=%s at=%s %s",
				round, winners, target.DoctorID, target.Date.Format("2006-01-02"), target.Time)
		} else {
			log.Printf("round %d: single winner, %d turned away", round, int64(s.config.Workers)-winners)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, workerID int, target *Target) {
	patient := s.patients[(workerID*7919)%len(s.patients)]

	payload, _ := json.Marshal(map[string]string{
		"doctor_id":  target.DoctorID.String(),
		"patient_id": patient.String(),
		"date":       target.Date.Format("2006-01-02"),
		"time":       target.Time.String(),
		"reason":     gofakeit.Sentence(4),
	})

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(payload))
	if err != nil {
		s.metrics.Record(time.Since(start), false, false)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.Record(time.Since(start), false, false)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	latency := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusCreated:
		s.metrics.Record(latency, true, false)
	case resp.StatusCode == http.StatusConflict:
		s.metrics.Record(latency, false, true)
	default:
		s.metrics.Record(latency, false, false)
	}
}

func (s *Simulator) PrintReport() {
	avg, min, max, p50, p95 := s.metrics.Stats()

	fmt.Println()
	fmt.Println("=== booking storm report ===")
	fmt.Printf("total:    %d\n", atomic.LoadInt64(&s.metrics.Total))
	fmt.Printf("success:  %d\n", atomic.LoadInt64(&s.metrics.Success))
	fmt.Printf("conflict: %d\n", atomic.LoadInt64(&s.metrics.Conflict))
	fmt.Printf("error:    %d\n", atomic.LoadInt64(&s.metrics.Error))
	fmt.Printf("latency:  avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)

	if atomic.LoadInt64(&s.metrics.Success) == int64(s.config.Rounds) && atomic.LoadInt64(&s.metrics.Error) == 0 {
		fmt.Println("result:   OK, one winner per round")
	} else {
		fmt.Println("result:   CHECK LOGS")
	}
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
