package model

// SeriesCap is the fixed window width for historical series.
const SeriesCap = 200

// Series is a bounded per-instrument OHLCV window, ordered oldest→newest.
// All four slices always have the same length (≤ SeriesCap). Written only
// during backfill; streaming updates never touch it.
type Series struct {
	Closes  []float64 `json:"closes"`
	Highs   []float64 `json:"highs"`
	Lows    []float64 `json:"lows"`
	Volumes []float64 `json:"volumes"`
}

// NewSeries allocates an empty series with full capacity.
func NewSeries() *Series {
	return &Series{
		Closes:  make([]float64, 0, SeriesCap),
		Highs:   make([]float64, 0, SeriesCap),
		Lows:    make([]float64, 0, SeriesCap),
		Volumes: make([]float64, 0, SeriesCap),
	}
}

// Len returns the number of points in the window.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Closes)
}

// Append adds one bar, evicting the oldest when the window is full.
func (s *Series) Append(close, high, low, volume float64) {
	if len(s.Closes) >= SeriesCap {
		s.Closes = s.Closes[1:]
		s.Highs = s.Highs[1:]
		s.Lows = s.Lows[1:]
		s.Volumes = s.Volumes[1:]
	}
	s.Closes = append(s.Closes, close)
	s.Highs = append(s.Highs, high)
	s.Lows = append(s.Lows, low)
	s.Volumes = append(s.Volumes, volume)
}
