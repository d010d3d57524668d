// Package sentiment polls the fear/greed index and keeps the last good
// reading available when the upstream is unreachable.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.alternative.me"

	DefaultInterval      = 5 * time.Minute
	LowBandwidthInterval = 10 * time.Minute
)

// Reading is one fear/greed observation. Stale is set when the latest
// fetch failed and the value is a carried-over last-good reading.
type Reading struct {
	Value          int       `json:"value"` // 0 extreme fear .. 100 extreme greed
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
	FetchedAt      time.Time `json:"fetched_at"`
	Stale          bool      `json:"stale"`
}

// Label maps an index value onto the upstream classification bands.
func Label(value int) string {
	switch {
	case value <= 25:
		return "Extreme Fear"
	case value <= 45:
		return "Fear"
	case value <= 55:
		return "Neutral"
	case value <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}

type apiResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// Fetcher polls the index on a fixed cadence.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration

	// OnUpdate fires after every poll, stale readings included.
	OnUpdate func(Reading)

	mu   sync.RWMutex
	last Reading
}

func NewFetcher(baseURL string, interval time.Duration) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Fetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   interval,
	}
}

// Current returns the latest reading; ok is false before the first
// successful fetch.
func (f *Fetcher) Current() (Reading, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last, !f.last.FetchedAt.IsZero()
}

// Run polls immediately and then every interval until ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) {
	f.poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Fetcher) poll(ctx context.Context) {
	reading, err := f.FetchOnce(ctx)
	if err != nil {
		log.Printf("[sentiment] fetch failed, keeping last reading: %v", err)
		f.mu.Lock()
		f.last.Stale = true
		reading = f.last
		f.mu.Unlock()
	} else {
		f.mu.Lock()
		f.last = reading
		f.mu.Unlock()
	}
	if f.OnUpdate != nil {
		f.OnUpdate(reading)
	}
}

// FetchOnce performs a single index fetch.
func (f *Fetcher) FetchOnce(ctx context.Context) (Reading, error) {
	url := f.baseURL + "/fng/?limit=1&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reading{}, fmt.Errorf("sentiment %d: %s", resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Reading{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return Reading{}, fmt.Errorf("sentiment: empty data")
	}

	entry := parsed.Data[0]
	value, err := strconv.Atoi(entry.Value)
	if err != nil {
		return Reading{}, fmt.Errorf("parse value %q: %w", entry.Value, err)
	}
	ts, err := strconv.ParseInt(entry.Timestamp, 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse timestamp %q: %w", entry.Timestamp, err)
	}

	classification := entry.Classification
	if classification == "" {
		classification = Label(value)
	}
	return Reading{
		Value:          value,
		Classification: classification,
		Timestamp:      time.Unix(ts, 0),
		FetchedAt:      time.Now(),
	}, nil
}
