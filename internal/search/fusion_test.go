package search

import (
	"math"
	"testing"
)

func TestMinMaxNormalize(t *testing.T) {
	in := map[int64]float64{1: 2, 2: 6, 3: 10}
	out := MinMaxNormalize(in)
	if out[1] != 0 || out[3] != 1 {
		t.Errorf("expected endpoints 0 and 1, got %v", out)
	}
	if math.Abs(out[2]-0.5) > 1e-9 {
		t.Errorf("expected midpoint 0.5, got %f", out[2])
	}
}

func TestMinMaxNormalize_Singleton(t *testing.T) {
	out := MinMaxNormalize(map[int64]float64{7: 0.3})
	if out[7] != 1.0 {
		t.Errorf("singleton should normalize to 1, got %f", out[7])
	}
}

func TestMinMaxNormalize_AllEqual(t *testing.T) {
	out := MinMaxNormalize(map[int64]float64{1: 5, 2: 5, 3: 5})
	for id, s := range out {
		if s != 1.0 {
			t.Errorf("chunk %d: expected 1, got %f", id, s)
		}
	}
}

func TestMinMaxNormalize_Empty(t *testing.T) {
	if out := MinMaxNormalize(nil); len(out) != 0 {
		t.Errorf("expected empty map, got %v", out)
	}
}

func TestFuse(t *testing.T) {
	vec := map[int64]float64{1: 1.0, 2: 0.5}
	kw := map[int64]float64{2: 1.0, 3: 0.5}
	out := Fuse(vec, kw, 0.6)

	if math.Abs(out[1]-0.6) > 1e-9 {
		t.Errorf("vector-only chunk: expected 0.6, got %f", out[1])
	}
	if math.Abs(out[2]-(0.6*0.5+0.4*1.0)) > 1e-9 {
		t.Errorf("both-signal chunk: got %f", out[2])
	}
	if math.Abs(out[3]-0.2) > 1e-9 {
		t.Errorf("keyword-only chunk: expected 0.2, got %f", out[3])
	}
}

func TestFuse_Bounds(t *testing.T) {
	vec := map[int64]float64{1: 1.0}
	kw := map[int64]float64{1: 1.0}
	out := Fuse(vec, kw, 0.65)
	if out[1] < 0 || out[1] > 1 {
		t.Errorf("fused score out of [0,1]: %f", out[1])
	}
	if math.Abs(out[1]-1.0) > 1e-9 {
		t.Errorf("perfect both signals should fuse to 1, got %f", out[1])
	}
}
