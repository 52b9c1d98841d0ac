package utils

import (
	"math"
	"testing"
)

func TestCosine_Identical(t *testing.T) {
	v := []float64{0.5, -0.2, 0.8}
	got := Cosine(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected cosine of identical vectors to be 1.0, got %f", got)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	if got := Cosine(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("Expected cosine of orthogonal vectors to be 0, got %f", got)
	}
}

func TestCosine_Opposite(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-1, -2, -3}
	if got := Cosine(a, b); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("Expected cosine of opposite vectors to be -1.0, got %f", got)
	}
}

func TestCosine_Degenerate(t *testing.T) {
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("Expected 0 for nil vectors, got %f", got)
	}
	if got := Cosine([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("Expected 0 for mismatched dimensions, got %f", got)
	}
	if got := Cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("Expected 0 for zero vector, got %f", got)
	}
}

func TestCentroid_Mean(t *testing.T) {
	vectors := [][]float64{
		{1, 2, 3},
		{3, 4, 5},
	}
	got := Centroid(vectors)
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Expected %d dims, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Component %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestCentroid_SkipsMismatched(t *testing.T) {
	vectors := [][]float64{
		{2, 2},
		{1, 2, 3}, // wrong dimensionality, skipped
		{4, 4},
	}
	got := Centroid(vectors)
	want := []float64{3, 3}
	if len(got) != 2 {
		t.Fatalf("Expected 2 dims, got %d", len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Component %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestCentroid_Empty(t *testing.T) {
	if got := Centroid(nil); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
	if got := Centroid([][]float64{{}}); got != nil {
		t.Errorf("Expected nil for all-empty vectors, got %v", got)
	}
}
