// Package sensorsim simulates the greenhouse controller's /get_data
// endpoint.
//
// Each request advances a random walk for every sensor and returns the
// result as a JSON snapshot. Now and then a field is left out or reported
// as zero so the display fallback can be seen in action.
package sensorsim

import (
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Path is where the snapshot is served.
	Path = "/get_data"

	defaultDropRate = 0.05
)

// Tank levels reported in liv_acqua.
var tankLevels = []string{"OK", "LOW", "EMPTY"}

type sensor struct {
	field    string
	value    float64
	min, max float64
	step     float64
	decimals int
}

type rules struct {
	seed     int64
	dropRate float64
	logger   *slog.Logger
}

// Option configures a [Handler].
type Option func(*rules)

// WithSeed makes the generated sequence deterministic.
func WithSeed(seed int64) Option {
	return func(r *rules) {
		r.seed = seed
	}
}

// WithDropRate sets the probability, per field and request, that a field
// is omitted or zeroed. Values outside [0, 1] are clamped.
func WithDropRate(p float64) Option {
	return func(r *rules) {
		r.dropRate = math.Min(1, math.Max(0, p))
	}
}

// WithLogger sets the logger for response write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *rules) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Handler serves simulated snapshots.
type Handler struct {
	logger *slog.Logger

	mu       sync.Mutex
	random   *rand.Rand
	dropRate float64
	sensors  []*sensor
	tank     int
}

// NewHandler creates a simulator with plausible starting readings.
func NewHandler(opts ...Option) *Handler {
	r := &rules{
		seed:     time.Now().UnixNano(),
		dropRate: defaultDropRate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return &Handler{
		logger:   r.logger,
		random:   rand.New(rand.NewSource(r.seed)),
		dropRate: r.dropRate,
		sensors: []*sensor{
			{field: "temp", value: 22.5, min: 5, max: 40, step: 0.3, decimals: 1},
			{field: "umid_aria", value: 60, min: 20, max: 100, step: 1.5, decimals: 0},
			{field: "umid_terr1", value: 45, min: 0, max: 100, step: 2, decimals: 0},
			{field: "umid_terr2", value: 50, min: 0, max: 100, step: 2, decimals: 0},
			{field: "umid_terr3", value: 40, min: 0, max: 100, step: 2, decimals: 0},
			{field: "liv_lum", value: 300, min: 0, max: 1000, step: 25, decimals: 0},
		},
	}
}

// Next advances the simulation and returns the next snapshot document.
func (h *Handler) Next() map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc := make(map[string]interface{}, len(h.sensors)+1)
	for _, s := range h.sensors {
		s.value += (h.random.Float64()*2 - 1) * s.step
		s.value = math.Min(s.max, math.Max(s.min, s.value))

		if h.random.Float64() < h.dropRate {
			// half of the dropped fields are omitted, half read zero
			if h.random.Intn(2) == 0 {
				doc[s.field] = 0
			}
			continue
		}
		doc[s.field] = round(s.value, s.decimals)
	}

	// the tank level changes rarely
	if h.random.Float64() < 0.02 {
		h.tank = h.random.Intn(len(tankLevels))
	}
	if h.random.Float64() >= h.dropRate {
		doc["liv_acqua"] = tankLevels[h.tank]
	}

	return doc
}

// ServeHTTP answers GET requests with the next snapshot.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(h.Next()); err != nil {
		h.logger.Error("failed to write snapshot response", "error", err)
	}
}

// Mux returns a mux serving the handler at [Path].
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	return mux
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
