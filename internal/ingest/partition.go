// Package ingest manages the real-time subscription channels: instrument
// partitioning, one websocket per group, per-instrument update throttling
// and reconnection with backoff.
package ingest

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultGroupSize is the number of ticker streams multiplexed on one
	// connection.
	DefaultGroupSize = 100

	// LowBandwidthMaxPairs caps the monitored universe in low-bandwidth mode.
	LowBandwidthMaxPairs = 300
)

// Quote-asset allocation of the monitored universe. USDT pairs dominate
// because they are what the table ranks; majors get a small slice each.
const (
	usdtShare  = 0.70
	btcShare   = 0.15
	ethShare   = 0.10
	otherShare = 0.05
)

// Partition splits symbols into subscription groups ordered by priority:
// top-volume USDT pairs first, then BTC, ETH and other quote assets, each
// category ranked by volumeOf descending and capped to its share of the
// monitored universe. The first groups therefore carry the instruments
// whose updates matter most.
func Partition(symbols []string, volumeOf func(string) float64, groupSize int, lowBandwidth bool) [][]string {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	var usdt, btc, eth, other []string
	for _, sym := range symbols {
		switch {
		case strings.HasSuffix(sym, "USDT"):
			usdt = append(usdt, sym)
		case strings.HasSuffix(sym, "BTC"):
			btc = append(btc, sym)
		case strings.HasSuffix(sym, "ETH"):
			eth = append(eth, sym)
		default:
			other = append(other, sym)
		}
	}

	maxPairs := len(symbols)
	if lowBandwidth && maxPairs > LowBandwidthMaxPairs {
		maxPairs = LowBandwidthMaxPairs
	}

	ordered := make([]string, 0, maxPairs)
	ordered = append(ordered, topByVolume(usdt, volumeOf, share(maxPairs, usdtShare))...)
	ordered = append(ordered, topByVolume(btc, volumeOf, share(maxPairs, btcShare))...)
	ordered = append(ordered, topByVolume(eth, volumeOf, share(maxPairs, ethShare))...)
	ordered = append(ordered, topByVolume(other, volumeOf, share(maxPairs, otherShare))...)

	var groups [][]string
	for start := 0; start < len(ordered); start += groupSize {
		end := start + groupSize
		if end > len(ordered) {
			end = len(ordered)
		}
		groups = append(groups, ordered[start:end])
	}
	return groups
}

func share(total int, fraction float64) int {
	return int(math.Round(float64(total) * fraction))
}

func topByVolume(symbols []string, volumeOf func(string) float64, n int) []string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return volumeOf(sorted[i]) > volumeOf(sorted[j])
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	return sorted[:n]
}
