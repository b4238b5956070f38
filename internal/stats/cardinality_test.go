package stats

import (
	"strconv"
	"testing"
)

func TestCardinalitySketch_EstimateWithinTolerance(t *testing.T) {
	sk := NewCardinalitySketch()
	const n = 10000
	for i := 0; i < n; i++ {
		sk.Add(strconv.Itoa(i))
	}
	est := sk.Estimate()
	// HyperLogLog at precision 14 has ~0.8% standard error; allow a wide
	// margin so the test isn't flaky.
	lo, hi := uint64(n*0.9), uint64(n*1.1)
	if est < lo || est > hi {
		t.Errorf("Estimate() = %d, want within [%d,%d]", est, lo, hi)
	}
}

func TestCardinalitySketch_RepeatedValuesDontInflateEstimate(t *testing.T) {
	sk := NewCardinalitySketch()
	for i := 0; i < 1000; i++ {
		sk.Add("same-value")
	}
	est := sk.Estimate()
	if est > 5 {
		t.Errorf("Estimate() = %d for a single repeated value, want near 1", est)
	}
}

func TestCardinalitySketch_MergeTakesRegisterMax(t *testing.T) {
	a := NewCardinalitySketch()
	b := NewCardinalitySketch()
	for i := 0; i < 5000; i++ {
		a.Add(strconv.Itoa(i))
	}
	for i := 2500; i < 7500; i++ {
		b.Add(strconv.Itoa(i))
	}
	a.Merge(b)
	est := a.Estimate()
	if est < 6000 || est > 9000 {
		t.Errorf("merged Estimate() = %d, want roughly 7500", est)
	}
}
