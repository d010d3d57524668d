package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchOnce_ParsesIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fng/" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"value":"72","value_classification":"Greed","timestamp":"1700000000"}]}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, 0)
	reading, err := f.FetchOnce(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if reading.Value != 72 || reading.Classification != "Greed" || reading.Stale {
		t.Errorf("reading: %+v", reading)
	}
	if reading.Timestamp.Unix() != 1700000000 {
		t.Errorf("timestamp: %v", reading.Timestamp)
	}
}

func TestFetchOnce_Errors(t *testing.T) {
	for name, body := range map[string]string{
		"empty data": `{"data":[]}`,
		"bad value":  `{"data":[{"value":"??","timestamp":"1"}]}`,
		"bad json":   `{nope`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		f := NewFetcher(srv.URL, 0)
		if _, err := f.FetchOnce(context.Background()); err == nil {
			t.Errorf("%s: no error", name)
		}
		srv.Close()
	}
}

func TestPoll_KeepsLastGoodReadingOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[{"value":"30","value_classification":"Fear","timestamp":"1700000000"}]}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, 0)
	var updates []Reading
	f.OnUpdate = func(r Reading) { updates = append(updates, r) }

	f.poll(context.Background())
	fail.Store(true)
	f.poll(context.Background())

	if len(updates) != 2 {
		t.Fatalf("updates: %d", len(updates))
	}
	if updates[0].Stale || updates[0].Value != 30 {
		t.Errorf("first reading: %+v", updates[0])
	}
	if !updates[1].Stale || updates[1].Value != 30 {
		t.Errorf("fallback reading: %+v", updates[1])
	}

	current, ok := f.Current()
	if !ok || current.Value != 30 || !current.Stale {
		t.Errorf("current: %+v ok=%v", current, ok)
	}
}

func TestCurrent_FalseBeforeFirstFetch(t *testing.T) {
	f := NewFetcher("http://unused.invalid", time.Minute)
	if _, ok := f.Current(); ok {
		t.Error("reading reported before any fetch")
	}
}

func TestLabel_Bands(t *testing.T) {
	cases := map[int]string{
		0: "Extreme Fear", 25: "Extreme Fear",
		26: "Fear", 45: "Fear",
		46: "Neutral", 55: "Neutral",
		56: "Greed", 75: "Greed",
		76: "Extreme Greed", 100: "Extreme Greed",
	}
	for value, want := range cases {
		if got := Label(value); got != want {
			t.Errorf("Label(%d) = %q, want %q", value, got, want)
		}
	}
}
