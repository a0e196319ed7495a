package style

import (
	"image/color"
	"testing"
)

func TestMixNormalizesWeights(t *testing.T) {
	a := Mix(K(5), W(18))
	b := Mix(K(10), W(36))
	if a != b {
		t.Fatalf("scaled weights differ: %v vs %v", a, b)
	}
	if a.A != 255 {
		t.Fatalf("alpha = %d", a.A)
	}
}

func TestMixEdges(t *testing.T) {
	if got := Mix(); got != White {
		t.Fatalf("empty mix = %v", got)
	}
	if got := Mix(K(1)); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Fatalf("pure black mix = %v", got)
	}
	gray := Mix(K(1), W(1))
	if gray.R != gray.G || gray.G != gray.B {
		t.Fatalf("even mix not gray: %v", gray)
	}
}

func TestStylesComplete(t *testing.T) {
	s := Styles()
	for _, name := range []string{
		"updated_time", "ver_ident", "routine_ident", "battery",
		"hint_next", "time_next", "next_task", "task_now_hint",
		"task_now", "task_now_small", "date", "ganzhi",
		"task", "task_small", "timetick",
	} {
		st, ok := s[name]
		if !ok {
			t.Errorf("style %q missing", name)
			continue
		}
		if st.Face == nil {
			t.Errorf("style %q has no face", name)
		}
	}
}
