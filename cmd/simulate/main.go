package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-chat-scheduling/internal/api"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/db"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

var log = logging.New("simulate", "info").Logger

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	LookupRatio  float64
	PatientLimit int
	PostgresDSN  string
}

// DataPool holds what the simulated patients say: known CPFs and the
// catalog names they pick from.
type DataPool struct {
	NationalIDs []string
	Targets     []target
}

// target is a location plus a specialty offered there without an
// attachment, so the booking flow never stops for an upload.
type target struct {
	Location  string
	Specialty string
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
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

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
	Turn    OperationMetrics // every POST /chat
	Booking OperationMetrics // whole booking conversations
	Lookup  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log.Info("simulator starting",
		"duration", cfg.Duration,
		"workers", cfg.Workers,
		"lookup_ratio", cfg.LookupRatio,
		"api", cfg.APIBaseURL,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}

	dataPool, err := sim.loadDataPool(ctx, pgPool)
	if err != nil {
		log.Error("load data pool", "error", err)
		os.Exit(1)
	}
	sim.pool = dataPool

	log.Info("data pool loaded", "patients", len(dataPool.NationalIDs), "targets", len(dataPool.Targets))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Error("failed to load base config", "error", err)
		os.Exit(1)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		LookupRatio:  getFloat("SIM_LOOKUP_RATIO", 0.2),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.LookupRatio < 0 || cfg.LookupRatio > 1 {
		return errors.New("SIM_LOOKUP_RATIO must be between 0 and 1")
	}
	return nil
}

// loadDataPool reads patient CPFs straight from Postgres and the catalog
// through the public API, the same way a chat front end would.
func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT national_id FROM patients LIMIT $1`, s.config.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.NationalIDs = append(dataPool.NationalIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	var locations []api.LocationResponse
	if err := s.getJSON(ctx, "/locations", &locations); err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	for _, loc := range locations {
		var specs []api.SpecialtyResponse
		if err := s.getJSON(ctx, "/locations/"+loc.ID.String()+"/specialties", &specs); err != nil {
			return nil, fmt.Errorf("load specialties for %s: %w", loc.Name, err)
		}
		for _, sp := range specs {
			if sp.RequiresAttachment {
				continue
			}
			dataPool.Targets = append(dataPool.Targets, target{Location: loc.Name, Specialty: sp.Name})
		}
	}

	if len(dataPool.NationalIDs) == 0 {
		return nil, errors.New("no patients loaded; run cmd/seed first")
	}
	if len(dataPool.Targets) == 0 {
		return nil, errors.New("no bookable location/specialty pairs")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		if rng.Float64() < s.config.LookupRatio {
			s.doLookup(ctx, rng)
		} else {
			s.doBooking(ctx, rng)
		}
	}
}

// doBooking walks one conversation from greeting to confirmation. Every
// worker answers "1" at the slot list, so concurrent workers targeting the
// same pair race for the same slot; losing that race is a conflict.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	cpf := s.pool.NationalIDs[rng.Intn(len(s.pool.NationalIDs))]

	start := time.Now()
	sess := &session{sim: s}

	script := []struct {
		msg  string
		want chat.ResponseKind
	}{
		{gofakeit.RandomString([]string{"oi", "olá", "bom dia", "quero marcar uma consulta"}), chat.KindText},
		{formatCPF(cpf, rng), chat.KindLocations},
		{t.Location, chat.KindSpecialties},
		{t.Specialty, chat.KindSlots},
		{"1", chat.KindConfirmation},
	}

	for _, step := range script {
		resp, err := sess.say(ctx, step.msg)
		if err != nil {
			s.recordBooking(ctx, start, false, errors.Is(err, errSessionBusy))
			return
		}
		if resp.Kind != step.want {
			// no slots left for this pair, or an unexpected prompt
			s.recordBooking(ctx, start, false, resp.Kind == chat.KindSpecialties)
			return
		}
	}

	resp, err := sess.say(ctx, "sim")
	if err != nil {
		s.recordBooking(ctx, start, false, errors.Is(err, errSessionBusy))
		return
	}
	switch {
	case resp.Kind == chat.KindSuccess:
		s.recordBooking(ctx, start, true, false)
	case resp.Kind == chat.KindSlots && !resp.Success:
		s.recordBooking(ctx, start, false, true)
	default:
		s.recordBooking(ctx, start, false, false)
	}
}

func (s *Simulator) doLookup(ctx context.Context, rng *rand.Rand) {
	cpf := s.pool.NationalIDs[rng.Intn(len(s.pool.NationalIDs))]

	start := time.Now()
	sess := &session{sim: s}

	if _, err := sess.say(ctx, "quero ver minhas consultas"); err != nil {
		s.record(ctx, &s.metrics.Lookup, start, false, false)
		return
	}
	resp, err := sess.say(ctx, cpf)
	if err != nil {
		s.record(ctx, &s.metrics.Lookup, start, false, false)
		return
	}
	s.record(ctx, &s.metrics.Lookup, start, resp.Kind == chat.KindLookup || resp.Kind == chat.KindText, false)
}

func (s *Simulator) recordBooking(ctx context.Context, start time.Time, success, conflict bool) {
	s.record(ctx, &s.metrics.Booking, start, success, conflict)
}

// record drops samples cut short by the end of the run.
func (s *Simulator) record(ctx context.Context, om *OperationMetrics, start time.Time, success, conflict bool) {
	if ctx.Err() != nil && !success {
		return
	}
	om.Record(time.Since(start), success, conflict)
}

var errSessionBusy = errors.New("session busy")

type session struct {
	sim *Simulator
	id  string
}

func (c *session) say(ctx context.Context, msg string) (api.ChatResponse, error) {
	body, _ := json.Marshal(api.ChatRequest{SessionID: c.id, Message: msg})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sim.config.APIBaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return api.ChatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.sim.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			c.sim.metrics.Turn.Record(latency, false, false)
		}
		return api.ChatResponse{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		c.sim.metrics.Turn.Record(latency, false, true)
		return api.ChatResponse{}, errSessionBusy
	default:
		c.sim.metrics.Turn.Record(latency, false, false)
		return api.ChatResponse{}, fmt.Errorf("chat: status %d", resp.StatusCode)
	}

	var out api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.sim.metrics.Turn.Record(latency, false, false)
		return api.ChatResponse{}, fmt.Errorf("chat: decode: %w", err)
	}
	c.sim.metrics.Turn.Record(latency, true, false)
	c.id = out.SessionID
	return out, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// formatCPF sometimes sends the CPF with the usual punctuation, which the
// chat strips.
func formatCPF(cpf string, rng *rand.Rand) string {
	if len(cpf) != 11 || rng.Intn(2) == 0 {
		return cpf
	}
	return cpf[0:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:]
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Chat turns", &s.metrics.Turn)
	printOperationReport("Booking conversations", &s.metrics.Booking)
	printOperationReport("Lookup conversations", &s.metrics.Lookup)
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
