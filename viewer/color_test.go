package viewer

import "testing"

func TestSpeedColorEndpoints(t *testing.T) {
	r, g, b, a := speedColor(0)
	if r != 15 || g != 25 || b != 90 || a != 255 {
		t.Errorf("speedColor(0) = (%d,%d,%d,%d), want (15,25,90,255)", r, g, b, a)
	}

	r, g, b, a = speedColor(1)
	if r != 255 || g != 255 || b != 255 || a != 255 {
		t.Errorf("speedColor(1) = (%d,%d,%d,%d), want (255,255,255,255)", r, g, b, a)
	}
}

func TestSpeedColorClamps(t *testing.T) {
	r0, g0, b0, _ := speedColor(0)
	r, g, b, _ := speedColor(-2.5)
	if r != r0 || g != g0 || b != b0 {
		t.Errorf("speedColor(-2.5) = (%d,%d,%d), want (%d,%d,%d)", r, g, b, r0, g0, b0)
	}

	r1, g1, b1, _ := speedColor(1)
	r, g, b, _ = speedColor(7)
	if r != r1 || g != g1 || b != b1 {
		t.Errorf("speedColor(7) = (%d,%d,%d), want (%d,%d,%d)", r, g, b, r1, g1, b1)
	}
}

func TestSpeedColorContinuousAtStops(t *testing.T) {
	for _, stop := range []float32{0.25, 0.5, 0.75} {
		rBelow, gBelow, bBelow, _ := speedColor(stop - 0.001)
		rAt, gAt, bAt, _ := speedColor(stop)
		if absDiff(rBelow, rAt) > 3 || absDiff(gBelow, gAt) > 3 || absDiff(bBelow, bAt) > 3 {
			t.Errorf("gradient jumps at %v: (%d,%d,%d) vs (%d,%d,%d)",
				stop, rBelow, gBelow, bBelow, rAt, gAt, bAt)
		}
	}
}

func TestSpeedColorRedMonotone(t *testing.T) {
	var prev uint8
	for i := 0; i <= 100; i++ {
		r, _, _, _ := speedColor(float32(i) / 100)
		if r < prev {
			t.Fatalf("red channel decreases at v=%v: %d < %d", float32(i)/100, r, prev)
		}
		prev = r
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
