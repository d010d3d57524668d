package store

import (
	"testing"
	"time"

	"crypto-screener/internal/model"
)

func seedOne(t *testing.T, symbol string) *SnapshotStore {
	t.Helper()
	s := NewSnapshotStore()
	s.Seed([]model.Instrument{{Symbol: symbol, BaseAsset: "BTC", QuoteAsset: "USDT", Tradable: true}})
	return s
}

func TestSnapshotStore_SeedDefaults(t *testing.T) {
	s := seedOne(t, "BTCUSDT")

	snap, ok := s.Get("BTCUSDT")
	if !ok {
		t.Fatal("seeded symbol not found")
	}
	if snap.Signal != model.SignalHold || snap.Confidence != 50 {
		t.Errorf("seed defaults: got %s/%d, want HOLD/50", snap.Signal, snap.Confidence)
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}
}

func TestSnapshotStore_SeedKeepsExisting(t *testing.T) {
	s := seedOne(t, "BTCUSDT")
	s.UpdatePrice("BTCUSDT", 50000, time.Now())

	s.Seed([]model.Instrument{{Symbol: "BTCUSDT"}})
	snap, _ := s.Get("BTCUSDT")
	if snap.Price != 50000 {
		t.Errorf("reseed wiped live price: got %v", snap.Price)
	}
}

func TestSnapshotStore_UpdatePrice(t *testing.T) {
	s := seedOne(t, "BTCUSDT")
	now := time.Now()

	if !s.UpdatePrice("BTCUSDT", 50000, now) {
		t.Error("first price move not reported as a change")
	}
	snap, _ := s.Get("BTCUSDT")
	if snap.Price != 50000 || snap.PrevPrice != 0 {
		t.Errorf("after first tick: price %v prev %v", snap.Price, snap.PrevPrice)
	}
	if !snap.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated not advanced on price change")
	}

	// Same price again: not a change, prev collapses onto price.
	if s.UpdatePrice("BTCUSDT", 50000, now.Add(time.Second)) {
		t.Error("unchanged price reported as a change")
	}
	snap, _ = s.Get("BTCUSDT")
	if snap.PrevPrice != 50000 {
		t.Errorf("unchanged tick: prev %v, want 50000", snap.PrevPrice)
	}
}

func TestSnapshotStore_LastUpdatedNeverRegresses(t *testing.T) {
	s := seedOne(t, "BTCUSDT")
	now := time.Now()

	s.UpdatePrice("BTCUSDT", 100, now)
	s.UpdatePrice("BTCUSDT", 101, now.Add(-time.Hour))

	snap, _ := s.Get("BTCUSDT")
	if snap.Price != 101 {
		t.Errorf("price: got %v, want 101", snap.Price)
	}
	if !snap.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated regressed to %v", snap.LastUpdated)
	}
}

func TestSnapshotStore_UpdatePriceUnknownSymbol(t *testing.T) {
	s := NewSnapshotStore()
	if s.UpdatePrice("NOPE", 1, time.Now()) {
		t.Error("unknown symbol reported as updated")
	}
}

func TestSnapshotStore_ApplyTickerAttribution(t *testing.T) {
	cases := []struct {
		name        string
		prev, price float64
		wantBuy     float64
		wantSell    float64
	}{
		{"upward move 70/30", 100, 110, 700, 300},
		{"downward move 30/70", 110, 100, 300, 700},
		{"flat 50/50", 100, 100, 500, 500},
	}

	for _, tc := range cases {
		s := seedOne(t, "ETHUSDT")
		now := time.Now()
		s.UpdatePrice("ETHUSDT", tc.prev, now)
		s.UpdatePrice("ETHUSDT", tc.price, now.Add(time.Millisecond))

		s.ApplyTicker(model.TickerEvent{Symbol: "ETHUSDT", QuoteVolume: 1000})
		snap, _ := s.Get("ETHUSDT")
		if snap.BuyVolume != tc.wantBuy || snap.SellVolume != tc.wantSell {
			t.Errorf("%s: buy/sell %v/%v, want %v/%v", tc.name, snap.BuyVolume, snap.SellVolume, tc.wantBuy, tc.wantSell)
		}
		if snap.QuoteVolume != 1000 {
			t.Errorf("%s: quoteVolume %v, want 1000", tc.name, snap.QuoteVolume)
		}
	}
}

func TestSnapshotStore_ApplyTickerShrinkingVolumeNotAttributed(t *testing.T) {
	s := seedOne(t, "ETHUSDT")
	now := time.Now()
	s.UpdatePrice("ETHUSDT", 110, now)
	s.ApplyTicker(model.TickerEvent{Symbol: "ETHUSDT", QuoteVolume: 1000})

	buyBefore, _ := s.Get("ETHUSDT")

	// 24h cumulative quote volume rolled over and shrank: nothing to attribute.
	s.ApplyTicker(model.TickerEvent{Symbol: "ETHUSDT", QuoteVolume: 400})
	snap, _ := s.Get("ETHUSDT")
	if snap.BuyVolume != buyBefore.BuyVolume || snap.SellVolume != buyBefore.SellVolume {
		t.Errorf("shrinking volume changed accumulators: %+v", snap)
	}
	if snap.QuoteVolume != 400 {
		t.Errorf("quoteVolume: got %v, want 400", snap.QuoteVolume)
	}
}

func TestSnapshotStore_DeltaVolumePctBounded(t *testing.T) {
	s := seedOne(t, "ETHUSDT")
	now := time.Now()
	s.UpdatePrice("ETHUSDT", 100, now)
	s.UpdatePrice("ETHUSDT", 110, now.Add(time.Millisecond))
	s.ApplyTicker(model.TickerEvent{Symbol: "ETHUSDT", QuoteVolume: 1000})

	snap, _ := s.Get("ETHUSDT")
	if snap.DeltaVolumePct < -100 || snap.DeltaVolumePct > 100 {
		t.Errorf("deltaVolumePct out of range: %v", snap.DeltaVolumePct)
	}
	// 700 buy vs 300 sell → (700-300)/1000*100 = 40.
	if snap.DeltaVolumePct != 40 {
		t.Errorf("deltaVolumePct: got %v, want 40", snap.DeltaVolumePct)
	}
}

func TestSnapshotStore_ApplyVerdictFiresHookOnlyOnChange(t *testing.T) {
	s := seedOne(t, "BTCUSDT")

	var calls []string
	s.OnSignalChange(func(symbol string, from, to model.Signal, snap model.Snapshot) {
		calls = append(calls, string(from)+"->"+string(to))
	})

	buy := model.Verdict{Signal: model.SignalBuy, Confidence: 80}
	if !s.ApplyVerdict("BTCUSDT", buy) {
		t.Error("HOLD→BUY not reported as a change")
	}
	if s.ApplyVerdict("BTCUSDT", model.Verdict{Signal: model.SignalBuy, Confidence: 85}) {
		t.Error("BUY→BUY reported as a change")
	}
	if !s.ApplyVerdict("BTCUSDT", model.Verdict{Signal: model.SignalSell, Confidence: 70}) {
		t.Error("BUY→SELL not reported as a change")
	}

	want := []string{"HOLD->BUY", "BUY->SELL"}
	if len(calls) != len(want) {
		t.Fatalf("hook calls: got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("hook call %d: got %s, want %s", i, calls[i], want[i])
		}
	}

	snap, _ := s.Get("BTCUSDT")
	if snap.Confidence != 70 || snap.Signal != model.SignalSell {
		t.Errorf("stored verdict: %s/%d", snap.Signal, snap.Confidence)
	}
}

func TestSnapshotStore_RescaleAccumulators(t *testing.T) {
	s := seedOne(t, "BTCUSDT")
	now := time.Now()
	s.UpdatePrice("BTCUSDT", 100, now)
	s.UpdatePrice("BTCUSDT", 110, now.Add(time.Millisecond))
	s.ApplyTicker(model.TickerEvent{Symbol: "BTCUSDT", QuoteVolume: 2e12})

	if n := s.RescaleAccumulators(1e12); n != 1 {
		t.Fatalf("rescaled: got %d, want 1", n)
	}
	snap, _ := s.Get("BTCUSDT")
	if snap.BuyVolume != 2e12*0.7*0.1 || snap.SellVolume != 2e12*0.3*0.1 {
		t.Errorf("after rescale: buy %v sell %v", snap.BuyVolume, snap.SellVolume)
	}
	if n := s.RescaleAccumulators(1e12); n != 0 {
		t.Errorf("second rescale touched %d snapshots", n)
	}
}
