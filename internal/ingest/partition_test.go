package ingest

import (
	"fmt"
	"reflect"
	"testing"
)

func volumes(m map[string]float64) func(string) float64 {
	return func(sym string) float64 { return m[sym] }
}

// ──────────────────────────── Partition ────────────────────────────

func TestPartition_PriorityOrdering(t *testing.T) {
	vols := map[string]float64{
		"BTCUSDT": 900, "ETHUSDT": 800, "SOLUSDT": 700,
		"ETHBTC": 50, "SOLBTC": 60,
		"SOLETH": 10,
		"EURTRY": 5,
	}
	groups := Partition(
		[]string{"SOLETH", "ETHBTC", "EURTRY", "SOLUSDT", "BTCUSDT", "SOLBTC", "ETHUSDT"},
		volumes(vols), 100, false)

	if len(groups) != 1 {
		t.Fatalf("groups: %d", len(groups))
	}
	// 7 pairs: shares are round(4.9)=5 USDT, round(1.05)=1 BTC,
	// round(0.7)=1 ETH, round(0.35)=0 other. Only 3 USDT pairs exist.
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "SOLBTC", "SOLETH"}
	if !reflect.DeepEqual(groups[0], want) {
		t.Errorf("order: got %v, want %v", groups[0], want)
	}
}

func TestPartition_SharesTrimLowestVolume(t *testing.T) {
	vols := make(map[string]float64)
	var syms []string
	add := func(sym string, vol float64) {
		syms = append(syms, sym)
		vols[sym] = vol
	}
	for i := 0; i < 8; i++ {
		add(fmt.Sprintf("U%02dUSDT", i), float64(1000-i))
	}
	add("AAABTC", 300)
	add("BBBBTC", 200)
	add("CCCBTC", 100)
	add("AAAETH", 90)
	add("BBBETH", 80)
	add("AAATRY", 40)
	add("BBBTRY", 30)

	// 15 pairs: round(10.5)=11 USDT (8 exist), round(2.25)=2 BTC,
	// round(1.5)=2 ETH, round(0.75)=1 other.
	groups := Partition(syms, volumes(vols), 100, false)
	if len(groups) != 1 {
		t.Fatalf("groups: %d", len(groups))
	}
	got := groups[0]
	if len(got) != 13 {
		t.Fatalf("pairs kept: %d, want 13", len(got))
	}
	for _, dropped := range []string{"CCCBTC", "BBBTRY"} {
		for _, sym := range got {
			if sym == dropped {
				t.Errorf("%s should have been trimmed", dropped)
			}
		}
	}
	if got[8] != "AAABTC" || got[9] != "BBBBTC" {
		t.Errorf("BTC slice wrong: %v", got[8:10])
	}
	if got[12] != "AAATRY" {
		t.Errorf("other slice wrong: %s", got[12])
	}
}

func TestPartition_LowBandwidthCapsUniverse(t *testing.T) {
	vols := make(map[string]float64)
	var syms []string
	for i := 0; i < 400; i++ {
		sym := fmt.Sprintf("S%03dUSDT", i)
		syms = append(syms, sym)
		vols[sym] = float64(400 - i)
	}

	groups := Partition(syms, volumes(vols), DefaultGroupSize, true)

	// Universe capped at 300, USDT share round(300*0.7)=210.
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 210 {
		t.Fatalf("total streams: %d, want 210", total)
	}
	if len(groups) != 3 || len(groups[0]) != 100 || len(groups[1]) != 100 || len(groups[2]) != 10 {
		t.Errorf("chunking: %d groups, sizes %d/%d/%d",
			len(groups), len(groups[0]), len(groups[1]), len(groups[2]))
	}
	if groups[0][0] != "S000USDT" {
		t.Errorf("highest-volume pair not first: %s", groups[0][0])
	}
}

func TestPartition_ChunksByGroupSize(t *testing.T) {
	var syms []string
	for i := 0; i < 250; i++ {
		syms = append(syms, fmt.Sprintf("S%03dUSDT", i))
	}
	groups := Partition(syms, func(string) float64 { return 1 }, 100, false)

	// round(250*0.7)=175 kept, split 100+75.
	if len(groups) != 2 {
		t.Fatalf("groups: %d", len(groups))
	}
	if len(groups[0]) != 100 || len(groups[1]) != 75 {
		t.Errorf("group sizes: %d/%d", len(groups[0]), len(groups[1]))
	}
}

func TestPartition_EmptyInput(t *testing.T) {
	if groups := Partition(nil, func(string) float64 { return 0 }, 100, false); len(groups) != 0 {
		t.Errorf("groups from empty input: %d", len(groups))
	}
}
