package utils

import (
	"math"
	"testing"
)

func TestClamp01(t *testing.T) {
	if Clamp01(-0.5) != 0 || Clamp01(1.5) != 1 || Clamp01(0.25) != 0.25 {
		t.Fatal("Clamp01 did not clamp to [0,1]")
	}
}

func TestIsFinite(t *testing.T) {
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || !IsFinite(3) {
		t.Fatal("IsFinite misclassified a value")
	}
}

func TestMinMaxAndMean(t *testing.T) {
	values := []float64{3, -1, 7, 2}
	min, max := MinMax(values)
	if min != -1 || max != 7 {
		t.Fatalf("MinMax = (%f,%f), want (-1,7)", min, max)
	}
	if Mean(values) != 2.75 {
		t.Fatalf("Mean = %f, want 2.75", Mean(values))
	}
	if Mean(nil) != 0 {
		t.Fatal("Mean of empty slice should be 0")
	}
}

func TestMeanAbsDelta(t *testing.T) {
	if got := MeanAbsDelta([]float64{1, 2, 0, 0}); math.Abs(got-1) > 1e-12 {
		t.Fatalf("MeanAbsDelta = %f, want 1", got)
	}
	if MeanAbsDelta([]float64{1}) != 0 {
		t.Fatal("MeanAbsDelta of a single value should be 0")
	}
}
