package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKline_UnmarshalJSON(t *testing.T) {
	raw := `[1700000000000,"100.5","110.1","99.9","105.0","1234.5",1700003599999,"129000.0",42,"600.0","63000.0","0"]`

	var k Kline
	if err := json.Unmarshal([]byte(raw), &k); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if k.OpenTime != 1700000000000 {
		t.Errorf("open time: %d", k.OpenTime)
	}
	if k.Open != 100.5 || k.High != 110.1 || k.Low != 99.9 || k.Close != 105.0 || k.Volume != 1234.5 {
		t.Errorf("ohlcv: %+v", k)
	}
}

func TestKline_UnmarshalJSONMalformed(t *testing.T) {
	for _, raw := range []string{
		`[1700000000000,"100.5"]`,
		`[1700000000000,"abc","110","99","105","1234"]`,
		`{"open":"100"}`,
	} {
		var k Kline
		if err := json.Unmarshal([]byte(raw), &k); err == nil {
			t.Errorf("no error for %s", raw)
		}
	}
}

func TestCombinedStreamURL(t *testing.T) {
	got := CombinedStreamURL("wss://example.test:9443", []string{"BTCUSDT", "ETHUSDT"})
	want := "wss://example.test:9443/stream?streams=btcusdt@ticker/ethusdt@ticker"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRESTClient_GetKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol param: %s", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval param: %s", got)
		}
		w.Write([]byte(`[[1,"1","2","0.5","1.5","10",2,"15",3,"5","7","0"]]`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, 2*time.Second)
	klines, err := c.GetKlines(context.Background(), "BTCUSDT", Interval1h, 200)
	if err != nil {
		t.Fatalf("GetKlines: %v", err)
	}
	if len(klines) != 1 || klines[0].Close != 1.5 {
		t.Errorf("klines: %+v", klines)
	}
}

func TestRESTClient_GetTickers24hErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1003,"msg":"rate limit"}`, http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, 2*time.Second)
	if _, err := c.GetTickers24h(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestRESTClient_GetExchangeInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"OLDBTC","status":"BREAK","baseAsset":"OLD","quoteAsset":"BTC"}]}`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, 2*time.Second)
	info, err := c.GetExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("GetExchangeInfo: %v", err)
	}
	if len(info.Symbols) != 2 {
		t.Fatalf("symbols: %d", len(info.Symbols))
	}
	if !info.Symbols[0].Tradable() || info.Symbols[1].Tradable() {
		t.Error("Tradable flags wrong")
	}
}
