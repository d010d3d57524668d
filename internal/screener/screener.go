// Package screener wires the whole pipeline together: catalog, seeding,
// backfill, streaming ingest, debounced recompute, persistence, journal,
// sentiment and the periodic maintenance cycles.
package screener

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-screener/config"
	"crypto-screener/internal/backfill"
	"crypto-screener/internal/catalog"
	"crypto-screener/internal/ingest"
	"crypto-screener/internal/journal"
	"crypto-screener/internal/metrics"
	"crypto-screener/internal/model"
	"crypto-screener/internal/persist"
	"crypto-screener/internal/scheduler"
	"crypto-screener/internal/sentiment"
	"crypto-screener/internal/store"
	"crypto-screener/internal/supervisor"
	"crypto-screener/pkg/binance"
)

const (
	fullRecomputeInterval   = 60 * time.Second
	fullRecomputeIntervalLB = 120 * time.Second

	cleanupInterval   = 2 * time.Minute
	cleanupIntervalLB = 3 * time.Minute

	seedAttempts    = 3
	seedBackoff     = 2 * time.Second
	restRequestTime = 15 * time.Second

	livenessInterval = 30 * time.Second
)

// Screener owns every pipeline component and their lifecycles. All blocking
// work happens inside Run; the accessors are safe from any goroutine.
type Screener struct {
	cfg *config.Config

	snapshots *store.SnapshotStore
	history   *store.HistoryStore
	sched     *scheduler.Scheduler
	manager   *ingest.Manager
	sup       *supervisor.Supervisor
	rest      *binance.RESTClient
	pool      *backfill.Pool
	moods     *sentiment.Fetcher

	// Optional, nil when the backing service is unavailable.
	state *persist.Store
	jrnl  *journal.Journal

	met    *metrics.Metrics
	health *metrics.HealthStatus

	mu          sync.RWMutex
	status      string
	filter      string
	instruments []model.Instrument
}

// klineProvider adapts the REST client to the backfill provider interface.
type klineProvider struct {
	rest *binance.RESTClient
}

func (p klineProvider) Klines(ctx context.Context, symbol string, limit int) ([]model.Kline, error) {
	klines, err := p.rest.GetKlines(ctx, symbol, binance.Interval1h, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Kline, len(klines))
	for i, k := range klines {
		out[i] = model.Kline{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
	}
	return out, nil
}

// New assembles the pipeline. Redis and SQLite are optional: when either is
// unreachable the screener degrades to in-memory operation with a log line
// instead of refusing to start.
func New(cfg *config.Config, met *metrics.Metrics, health *metrics.HealthStatus) *Screener {
	s := &Screener{
		cfg:       cfg,
		snapshots: store.NewSnapshotStore(),
		history:   store.NewHistoryStore(),
		rest:      binance.NewRESTClient(cfg.RESTBaseURL, restRequestTime),
		met:       met,
		health:    health,
		status:    "Initializing",
	}

	s.sched = scheduler.New(s.snapshots, s.history)
	s.sched.SetDebounce(cfg.Debounce)
	s.sched.SetBatch(cfg.BatchSize, scheduler.DefaultBatchYield)
	s.sched.OnBatch = func(symbols int, elapsed time.Duration) {
		met.RecomputeBatches.Inc()
		met.RecomputesTotal.Add(float64(symbols))
		met.RecomputeDur.Observe(elapsed.Seconds())
	}

	s.manager = ingest.NewManager(ingest.Config{
		StreamBaseURL: cfg.StreamBaseURL,
		GroupSize:     cfg.GroupSize,
		LowBandwidth:  cfg.LowBandwidth,
	}, s.snapshots, s.snapshots.QuoteVolumeOf, s.sched.Enqueue)
	s.manager.OnReconnect = func(int) { met.WSReconnects.Inc() }
	s.manager.OnDroppedFrame = func(ch int, err error) {
		met.DroppedFramesTotal.Inc()
		log.Printf("[screener] channel %d dropped frame: %v", ch, err)
	}
	s.manager.OnStateChange = func(int, ingest.State) {
		met.OpenChannels.Set(float64(s.manager.ActiveCount()))
	}
	s.manager.OnTicker = func(symbol string, at time.Time) {
		met.TickerMessagesTotal.Inc()
		health.SetLastTickTime(at)
	}
	s.manager.OnThrottled = func(string) { met.ThrottledUpdates.Inc() }

	s.sup = supervisor.New(s.manager, s.subscribedSymbols)
	s.sup.OnStatus = func(status string) {
		s.setStatus(status)
		health.SetStreamStatus(status, s.manager.ActiveCount(), s.manager.ChannelCount())
	}

	s.pool = backfill.NewPool(klineProvider{s.rest}, s.history)
	s.pool.SetWorkers(cfg.BackfillWorkers)
	s.pool.OnLoaded = func(symbol string) {
		met.BackfillLoaded.Inc()
		s.sched.Enqueue(symbol)
	}

	interval := sentiment.DefaultInterval
	if cfg.LowBandwidth {
		interval = sentiment.LowBandwidthInterval
	}
	s.moods = sentiment.NewFetcher(cfg.SentimentURL, interval)
	s.moods.OnUpdate = func(r sentiment.Reading) {
		met.SentimentValue.Set(float64(r.Value))
		health.SetSentimentOK(!r.Stale)
	}

	s.snapshots.OnSignalChange(s.signalHook(nil))

	return s
}

// signalHook builds the transition observer: metrics and journal always,
// plus the caller's extra observer when present.
func (s *Screener) signalHook(extra store.SignalChangeFunc) store.SignalChangeFunc {
	return func(symbol string, from, to model.Signal, snap model.Snapshot) {
		s.met.SignalChangesTotal.WithLabelValues(string(to)).Inc()
		if s.jrnl != nil {
			s.jrnl.Record(journal.Entry{
				Symbol:     symbol,
				From:       from,
				To:         to,
				Confidence: snap.Confidence,
				Status:     snap.TradeResult.Status,
				At:         snap.LastUpdated,
			})
		}
		if extra != nil {
			extra(symbol, from, to, snap)
		}
	}
}

// OnSignalChange registers an additional observer for signal transitions,
// layered on top of the internal journal/metrics hook.
func (s *Screener) OnSignalChange(fn store.SignalChangeFunc) {
	s.snapshots.OnSignalChange(s.signalHook(fn))
}

// Snapshots returns a copy of every tracked instrument snapshot.
func (s *Screener) Snapshots() []model.Snapshot { return s.snapshots.All() }

// Snapshot returns one instrument's snapshot.
func (s *Screener) Snapshot(symbol string) (model.Snapshot, bool) {
	return s.snapshots.Get(symbol)
}

// Sentiment returns the latest fear/greed reading.
func (s *Screener) Sentiment() (sentiment.Reading, bool) { return s.moods.Current() }

// Status returns the current human-readable pipeline status.
func (s *Screener) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ForceRecomputeAll synchronously recomputes every instrument.
func (s *Screener) ForceRecomputeAll() int { return s.sched.ForceRecomputeAll() }

// Filter returns the presentation layer's persisted filter selection.
func (s *Screener) Filter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetFilter records the filter selection so it survives restarts.
func (s *Screener) SetFilter(filter string) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
}

func (s *Screener) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// subscribedSymbols derives the streaming universe from the catalog. The
// partition layer ranks and trims it by live volume.
func (s *Screener) subscribedSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make([]string, 0, len(s.instruments))
	for _, inst := range s.instruments {
		symbols = append(symbols, inst.Symbol)
	}
	return symbols
}

// Run starts the pipeline and blocks until ctx is cancelled. Startup order
// matters: catalog, persisted restore, REST seeding, then streaming plus
// backfill concurrently, then the periodic cycles.
func (s *Screener) Run(ctx context.Context) error {
	instruments, err := catalog.Load(ctx, s.rest)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	s.mu.Lock()
	s.instruments = instruments
	s.mu.Unlock()
	s.snapshots.Seed(instruments)
	s.health.SetInstruments(len(instruments))

	s.connectOptionalStores()
	s.restorePersisted(ctx)

	if err := s.seedPrices(ctx); err != nil {
		return fmt.Errorf("price seeding: %w", err)
	}
	s.setStatus(fmt.Sprintf("Connected - %d pairs loaded", s.snapshots.Len()))

	var wg sync.WaitGroup
	runLoop := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	if s.jrnl != nil {
		runLoop(s.jrnl.Run)
	}
	runLoop(s.moods.Run)

	// History loads run behind the live stream so prices move while the
	// table warms up.
	runLoop(func(ctx context.Context) {
		symbols := backfill.Prioritize(s.subscribedSymbols(), s.snapshots.QuoteVolumeOf)
		res := s.pool.Run(ctx, symbols)
		s.met.BackfillFailures.Add(float64(len(res.Failed)))
	})

	s.manager.Start(ctx, s.subscribedSymbols())
	runLoop(s.sup.Run)
	runLoop(s.runMaintenance)

	var rdb *goredis.Client
	if s.state != nil {
		rdb = s.state.Client()
	}
	var journalDB *sql.DB
	if s.jrnl != nil {
		journalDB = s.jrnl.DB()
	}
	s.health.StartLivenessChecker(ctx, rdb, journalDB, livenessInterval)

	if s.state != nil {
		runLoop(func(ctx context.Context) {
			s.state.AutosaveLoop(ctx, s.cfg.AutosaveInterval, s.collectState)
		})
	}

	<-ctx.Done()
	s.manager.Stop()
	s.sched.Stop()
	wg.Wait()
	s.closeOptionalStores()
	log.Printf("[screener] stopped")
	return nil
}

// connectOptionalStores opens Redis and SQLite, degrading with a log line
// when either is unavailable.
func (s *Screener) connectOptionalStores() {
	state, err := persist.New(persist.Config{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
		MaxAge:   s.cfg.StateMaxAge,
	})
	if err != nil {
		log.Printf("[screener] persistence disabled: %v", err)
	} else {
		s.state = state
		s.state.OnSave = func(elapsed time.Duration, err error) {
			if err == nil {
				s.met.PersistSaveDur.Observe(elapsed.Seconds())
			}
		}
		s.state.OnBreakerChange = func(from, to persist.BreakerState) {
			s.met.CircuitBreakerState.Set(float64(to))
			if to == persist.BreakerOpen {
				s.met.CircuitBreakerTrips.Inc()
			}
		}
	}

	jrnl, err := journal.New(journal.Config{DBPath: s.cfg.SQLitePath})
	if err != nil {
		log.Printf("[screener] journal disabled: %v", err)
	} else {
		s.jrnl = jrnl
		s.jrnl.OnDrop = func(string) { s.met.JournalDropsTotal.Inc() }
	}
}

func (s *Screener) closeOptionalStores() {
	if s.state != nil {
		s.state.Close()
	}
	if s.jrnl != nil {
		s.jrnl.Close()
	}
}

// restorePersisted warms the stores from the last saved state. Stale or
// missing state is skipped silently; the REST seeding that follows fills
// the gaps.
func (s *Screener) restorePersisted(ctx context.Context) {
	if s.state == nil {
		return
	}
	saved, err := s.state.Load(ctx)
	if err != nil {
		if !errors.Is(err, persist.ErrNoState) {
			log.Printf("[screener] skipping persisted state: %v", err)
		}
		return
	}

	now := time.Now()
	restored := 0
	for _, snap := range saved.Snapshots {
		if _, ok := s.snapshots.Get(snap.Symbol); !ok {
			continue // delisted since the save
		}
		s.snapshots.Restore(snap, now)
		restored++
	}
	for symbol, series := range saved.History {
		if series.Len() > 0 {
			s.history.Set(symbol, series)
		}
	}
	s.SetFilter(saved.Filter)
	log.Printf("[screener] restored %d snapshots, %d series (saved %s ago)",
		restored, s.history.Len(), now.Sub(saved.SavedAt).Round(time.Second))
}

func (s *Screener) collectState() persist.State {
	history := make(map[string]*model.Series, s.history.Len())
	for _, symbol := range s.history.Symbols() {
		if series := s.history.Get(symbol); series.Len() > 0 {
			history[symbol] = series
		}
	}
	return persist.State{
		Snapshots: s.snapshots.All(),
		History:   history,
		Filter:    s.Filter(),
	}
}

// seedPrices populates snapshots from the 24h ticker endpoint before the
// streams open, so the first render is never empty.
func (s *Screener) seedPrices(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= seedAttempts; attempt++ {
		tickers, err := s.rest.GetTickers24h(ctx)
		if err == nil {
			now := time.Now()
			seeded := 0
			for _, t := range tickers {
				ev, perr := tickerToEvent(t, now)
				if perr != nil {
					continue
				}
				s.snapshots.SeedTicker(ev, now)
				seeded++
			}
			log.Printf("[screener] seeded %d tickers", seeded)
			return nil
		}
		lastErr = err
		if attempt < seedAttempts {
			delay := time.Duration(attempt) * seedBackoff
			log.Printf("[screener] ticker seed attempt %d failed, retrying in %s: %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", seedAttempts, lastErr)
}

func tickerToEvent(t binance.Ticker24h, now time.Time) (model.TickerEvent, error) {
	price, err := binance.ParseFloat("lastPrice", t.LastPrice)
	if err != nil {
		return model.TickerEvent{}, err
	}
	change, err := binance.ParseFloat("priceChangePercent", t.PriceChangePercent)
	if err != nil {
		return model.TickerEvent{}, err
	}
	volume, err := binance.ParseFloat("volume", t.Volume)
	if err != nil {
		return model.TickerEvent{}, err
	}
	quoteVolume, err := binance.ParseFloat("quoteVolume", t.QuoteVolume)
	if err != nil {
		return model.TickerEvent{}, err
	}
	return model.TickerEvent{
		Symbol:      t.Symbol,
		LastPrice:   price,
		ChangePct:   change,
		Volume:      volume,
		QuoteVolume: quoteVolume,
		TradeCount:  t.Count,
		ReceivedAt:  now,
	}, nil
}

// runMaintenance drives the periodic full recompute and the memory cleanup
// cycle.
func (s *Screener) runMaintenance(ctx context.Context) {
	recomputeEvery := fullRecomputeInterval
	cleanupEvery := cleanupInterval
	if s.cfg.LowBandwidth {
		recomputeEvery = fullRecomputeIntervalLB
		cleanupEvery = cleanupIntervalLB
	}

	recompute := time.NewTicker(recomputeEvery)
	cleanup := time.NewTicker(cleanupEvery)
	defer recompute.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-recompute.C:
			n := s.sched.ForceRecomputeAll()
			s.met.RecomputesTotal.Add(float64(n))
		case <-cleanup.C:
			s.runCleanup()
		}
	}
}

// runCleanup evicts low-volume history beyond the ceiling and rescales
// buy/sell accumulators that have grown past the overflow threshold.
func (s *Screener) runCleanup() {
	evicted := s.history.KeepTopByVolume(s.cfg.HistoryCeiling, s.snapshots.QuoteVolumeOf)
	if len(evicted) > 0 {
		s.met.SeriesEvicted.Add(float64(len(evicted)))
		log.Printf("[screener] cleanup evicted %d series", len(evicted))
	}
	if n := s.snapshots.RescaleAccumulators(s.cfg.AccumulatorCeiling); n > 0 {
		s.met.AccumulatorRescale.Add(float64(n))
	}
}
