// Package dispense runs the simulated dispensing ("surtimiento") feed: a
// bounded, newest-first list of records that grows by one synthetic record per
// tick until paused.
package dispense

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/metrics"
)

// HighlightWindow is how long a new record reports is_new.
const HighlightWindow = 3 * time.Second

// MaxCapacity keeps the feed at most a tenth of the five-digit folio space so
// a free folio is always found in a few draws.
const MaxCapacity = folioSpace / 10

const (
	subscriberBuffer = 16
	folioSpace       = 100000
)

var ErrUnknownFolio = errors.New("unknown folio")

type Config struct {
	Interval time.Duration
	Capacity int
	Now      func() time.Time
	Rand     *rand.Rand
}

type entry struct {
	record    domain.DispenseRecord
	createdAt time.Time
	highlight bool
}

// Feed is safe for concurrent use.
type Feed struct {
	mu       sync.Mutex
	entries  []entry
	paused   bool
	subs     map[int]chan domain.DispenseRecord
	nextSub  int
	interval time.Duration
	capacity int
	now      func() time.Time
	rng      *rand.Rand

	logger  *zap.Logger
	metrics *metrics.Collector
}

// New builds a feed holding the three initial records.
func New(cfg Config, logger *zap.Logger, m *metrics.Collector) *Feed {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.Capacity > MaxCapacity {
		cfg.Capacity = MaxCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feed{
		subs:     map[int]chan domain.DispenseRecord{},
		interval: cfg.Interval,
		capacity: cfg.Capacity,
		now:      cfg.Now,
		rng:      cfg.Rand,
		logger:   logger,
		metrics:  m,
	}
	start := f.now()
	for _, r := range initialRecords() {
		r.CreatedAt = domain.Timestamp(start)
		f.entries = append(f.entries, entry{record: r, createdAt: start})
	}
	if len(f.entries) > f.capacity {
		f.entries = f.entries[:f.capacity]
	}
	return f
}

// Run generates one record per interval until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	f.logger.Info("dispensing feed started", zap.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("dispensing feed stopped")
			return nil
		case <-ticker.C:
			f.Generate()
		}
	}
}

// Generate prepends one synthetic record unless the feed is paused. The
// oldest record is dropped once capacity is reached.
func (f *Feed) Generate() (domain.DispenseRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return domain.DispenseRecord{}, false
	}
	now := f.now()
	r := f.synthetic()
	r.CreatedAt = domain.Timestamp(now)

	f.entries = append(f.entries, entry{})
	copy(f.entries[1:], f.entries)
	f.entries[0] = entry{record: r, createdAt: now, highlight: true}
	if len(f.entries) > f.capacity {
		f.entries = f.entries[:f.capacity]
	}
	f.metrics.DispenseGenerated()

	out := r
	out.IsNew = true
	for id, ch := range f.subs {
		select {
		case ch <- out:
		default:
			f.logger.Debug("dispensing subscriber lagging, record skipped", zap.Int("subscriber", id))
		}
	}
	return out, true
}

// Snapshot returns the records newest first with is_new evaluated now.
func (f *Feed) Snapshot() []domain.DispenseRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	out := make([]domain.DispenseRecord, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.record
		out[i].IsNew = e.highlight && now.Sub(e.createdAt) < HighlightWindow
	}
	return out
}

func (f *Feed) Pause()  { f.setPaused(true) }
func (f *Feed) Resume() { f.setPaused(false) }

func (f *Feed) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Feed) setPaused(p bool) {
	f.mu.Lock()
	f.paused = p
	f.mu.Unlock()
	f.metrics.FeedPaused(p)
	f.logger.Info("dispensing feed toggled", zap.Bool("paused", p))
}

// MarkDispensed flips the dispensed flag of folio and returns the updated record.
func (f *Feed) MarkDispensed(folio string) (domain.DispenseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].record.Folio == folio {
			f.entries[i].record.Dispensed = !f.entries[i].record.Dispensed
			return f.entries[i].record, nil
		}
	}
	return domain.DispenseRecord{}, ErrUnknownFolio
}

// Subscribe returns a channel of newly generated records and a cancel func
// that closes it. Records are dropped for a subscriber whose buffer is full.
func (f *Feed) Subscribe() (<-chan domain.DispenseRecord, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan domain.DispenseRecord, subscriberBuffer)
	f.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// synthetic must be called with mu held.
func (f *Feed) synthetic() domain.DispenseRecord {
	pick := func(p float64, a, b string) string {
		if f.rng.Float64() > p {
			return a
		}
		return b
	}
	withSolution := f.rng.Float64() > 0.3
	r := domain.DispenseRecord{
		Folio:       f.uniqueFolio(),
		Patient:     "NUEVO PACIENTE " + strconv.Itoa(f.rng.IntN(100)),
		Medication:  pick(0.5, "ceftriaxona 1000 mg", "vancomicina 500 mg"),
		Dose:        pick(0.5, "2000 mg", "1000 mg"),
		Vials:       int64(f.rng.IntN(3) + 1),
		Opt:         pick(0.5, "2", "1"),
		Lot:         pick(0.5, "J24T017-A", "M24012A-V"),
		Quantity:    1,
		Solution:    "Sin Solución",
		SolutionLot: "Sin Lote Solución",
	}
	if withSolution {
		r.Solution = "Cloruro de Sodio 0.9% Envase con 100 ml"
		r.Volume = "100 mL"
		r.SolutionLot = "VZ4277"
	}
	return r
}

func (f *Feed) uniqueFolio() string {
	taken := make(map[string]struct{}, len(f.entries))
	for _, e := range f.entries {
		taken[e.record.Folio] = struct{}{}
	}
	for {
		folio := strconv.Itoa(f.rng.IntN(folioSpace))
		if _, ok := taken[folio]; !ok {
			return folio
		}
	}
}

func initialRecords() []domain.DispenseRecord {
	return []domain.DispenseRecord{
		{
			Folio: "17219", Patient: "LOPEZ MAGAÑA, MARIA DE JESUS", Medication: "levofloxacino 500 mg",
			Dose: "750 mg", Vials: 1, Opt: "1.5", Lot: "Y24E250-V", Solution: "Sin Solución",
			Quantity: 1, SolutionLot: "Sin Lote Solución",
		},
		{
			Folio: "19297", Patient: "LOPEZ MAGAÑA, JOSE ASCENCION", Medication: "levofloxacino 500 mg",
			Dose: "750 mg", Vials: 1, Opt: "1.5", Lot: "Y24E250-V", Solution: "Sin Solución",
			Quantity: 1, SolutionLot: "Sin Lote Solución",
		},
		{
			Folio: "17430", Patient: "GONZALEZ VAZQUEZ, ALAN", Medication: "ceftriaxona 1000 mg",
			Dose: "2000 mg", Vials: 2, Opt: "2", Lot: "J24T017-A",
			Solution: "Cloruro de Sodio 0.9% Envase con 100 ml", Volume: "100 mL", Quantity: 1, SolutionLot: "VZ4277",
		},
	}
}
