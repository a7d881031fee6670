package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-scheduling/internal/config"
	"github.com/medbook/clinic-scheduling/internal/db"
	"github.com/medbook/clinic-scheduling/internal/scheduling"
)

// simulate fires concurrent scheduling and cancellation requests at a
// running api-server and reports success/conflict/error rates with latency
// percentiles. Contention is deliberate: many workers fight over a small
// set of bookable slots.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	CancelRatio  float64
	PatientLimit int
	SlotDays     int
}

type DataPool struct {
	Patients []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) TakeRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.appointments))
	id := dp.appointments[idx]
	dp.appointments = append(dp.appointments[:idx], dp.appointments[idx+1:]...)
	return id, true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Rejected int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95idx := len(latencies) * 95 / 100
	if p95idx >= len(latencies) {
		p95idx = len(latencies) - 1
	}
	p95 = latencies[p95idx]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "simulate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	sim := SimConfig{
		APIBaseURL:   envOr("SIM_API_URL", "http://127.0.0.1:"+cfg.HTTPPort),
		Duration:     envDuration("SIM_DURATION", 30*time.Second),
		Workers:      envInt("SIM_WORKERS", 16),
		CancelRatio:  0.2,
		PatientLimit: envInt("SIM_PATIENT_LIMIT", 500),
		SlotDays:     envInt("SIM_SLOT_DAYS", 3),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}

	dataPool := &DataPool{}
	rows, err := pool.Query(context.Background(), `
		SELECT id FROM patients WHERE active ORDER BY created_at LIMIT $1
	`, sim.PatientLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("load patients")
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			logger.Fatal().Err(err).Msg("scan patient id")
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()
	pool.Close()

	if len(dataPool.Patients) == 0 {
		logger.Fatal().Msg("no active patients found, run cmd/seed first")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("workers", sim.Workers).
		Dur("duration", sim.Duration).
		Msg("starting simulation")

	scheduleMetrics := &OperationMetrics{}
	cancelMetrics := &OperationMetrics{}

	deadline := time.Now().Add(sim.Duration)
	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runWorker(sim, dataPool, scheduleMetrics, cancelMetrics, deadline, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	report(logger, "schedule", scheduleMetrics)
	report(logger, "cancel", cancelMetrics)
}

var simSpecialties = []string{
	scheduling.SpecialtyCardiology,
	scheduling.SpecialtyDermatology,
	scheduling.SpecialtyGeneralPractice,
	scheduling.SpecialtyOrthopedics,
	scheduling.SpecialtyPediatrics,
}

func runWorker(sim SimConfig, pool *DataPool, scheduleM, cancelM *OperationMetrics, deadline time.Time, rng *rand.Rand) {
	client := &http.Client{Timeout: 10 * time.Second}

	for time.Now().Before(deadline) {
		if rng.Float64() < sim.CancelRatio {
			if id, ok := pool.TakeRandomAppointment(rng); ok {
				doCancel(client, sim.APIBaseURL, id, cancelM)
				continue
			}
		}
		doSchedule(client, sim, pool, rng, scheduleM)
	}
}

func doSchedule(client *http.Client, sim SimConfig, pool *DataPool, rng *rand.Rand, m *OperationMetrics) {
	patient := pool.Patients[rng.Intn(len(pool.Patients))]

	// A bookable slot: tomorrow onwards, Monday to Saturday, on the hour
	// inside clinic hours. The narrow day range keeps workers colliding.
	day := time.Now().AddDate(0, 0, 1+rng.Intn(sim.SlotDays))
	for day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	hour := scheduling.OpeningHour + rng.Intn(scheduling.ClosingHour-scheduling.OpeningHour+1)
	at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.Local)

	body, _ := json.Marshal(map[string]any{
		"patient_id":   patient.String(),
		"specialty":    simSpecialties[rng.Intn(len(simSpecialties))],
		"scheduled_at": at,
	})

	start := time.Now()
	resp, err := client.Post(sim.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		m.Record(latency, 0)
		return
	}
	defer resp.Body.Close()

	m.Record(latency, resp.StatusCode)

	if resp.StatusCode == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			pool.AddAppointment(created.ID)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
}

func doCancel(client *http.Client, baseURL string, id uuid.UUID, m *OperationMetrics) {
	body, _ := json.Marshal(map[string]any{"reason": "simulated cancellation"})

	start := time.Now()
	resp, err := client.Post(fmt.Sprintf("%s/appointments/%s/cancel", baseURL, id), "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		m.Record(latency, 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	m.Record(latency, resp.StatusCode)
}

func report(logger zerolog.Logger, op string, m *OperationMetrics) {
	avg, p50, p95, max := m.Stats()
	logger.Info().
		Str("op", op).
		Int64("total", atomic.LoadInt64(&m.Total)).
		Int64("success", atomic.LoadInt64(&m.Success)).
		Int64("rejected", atomic.LoadInt64(&m.Rejected)).
		Int64("error", atomic.LoadInt64(&m.Error)).
		Dur("avg", avg).
		Dur("p50", p50).
		Dur("p95", p95).
		Dur("max", max).
		Msg("simulation result")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
