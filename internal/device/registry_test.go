package device

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		preferred  []string
		available  []string
		startAfter int
		want       Source
		wantOK     bool
	}{
		{
			name:       "first preferred missing",
			preferred:  []string{"Mic A", "Mic B"},
			available:  []string{"Mic B"},
			startAfter: -1,
			want:       Source{Name: "Mic B", Rank: 1},
			wantOK:     true,
		},
		{
			name:       "advances past failing entry",
			preferred:  []string{"A", "B", "C"},
			available:  []string{"A", "B", "C"},
			startAfter: 0,
			want:       Source{Name: "B", Rank: 1},
			wantOK:     true,
		},
		{
			name:       "wraps to the start",
			preferred:  []string{"A", "B", "C"},
			available:  []string{"A", "C"},
			startAfter: 2,
			want:       Source{Name: "A", Rank: 0},
			wantOK:     true,
		},
		{
			name:       "fallback skips failing source",
			preferred:  []string{"A"},
			available:  []string{"A", "Webcam"},
			startAfter: 0,
			want:       Source{Name: "Webcam", Rank: -1},
			wantOK:     true,
		},
		{
			name:       "no preferences uses first available",
			preferred:  nil,
			available:  []string{"Built-in", "USB"},
			startAfter: -1,
			want:       Source{Name: "Built-in", Rank: -1},
			wantOK:     true,
		},
		{
			name:       "only failing source left",
			preferred:  []string{"A", "B"},
			available:  []string{"A"},
			startAfter: 0,
			want:       Source{Name: "A", Rank: 0},
			wantOK:     true,
		},
		{
			name:       "nothing available",
			preferred:  []string{"A"},
			available:  nil,
			startAfter: -1,
			wantOK:     false,
		},
		{
			name:       "out of range start is treated as initial",
			preferred:  []string{"A", "B"},
			available:  []string{"B"},
			startAfter: 7,
			want:       Source{Name: "B", Rank: 1},
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.preferred, tt.available, tt.startAfter)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveVisitsEveryPreferredSourceOnce(t *testing.T) {
	preferred := []string{"A", "B", "C", "D"}
	available := []string{"D", "C", "B", "A"}

	seen := make(map[string]int)
	start := -1
	for i := 0; i < len(preferred); i++ {
		src, ok := Resolve(preferred, available, start)
		if !ok {
			t.Fatalf("attempt %d: no source", i)
		}
		seen[src.Name]++
		start = src.Rank
	}

	for _, name := range preferred {
		if seen[name] != 1 {
			t.Errorf("%s returned %d times, want 1", name, seen[name])
		}
	}

	again, _ := Resolve(preferred, available, start)
	if again.Name != "A" {
		t.Errorf("cycle should restart at A, got %s", again.Name)
	}
}

func TestRegistryFailover(t *testing.T) {
	r := NewRegistry([]string{"Mic A", "Mic B"})
	if r.Index() != -1 {
		t.Fatalf("fresh registry index = %d", r.Index())
	}

	src, ok := r.Failover([]string{"Mic A", "Mic B", "HDMI"})
	if !ok || src.Name != "Mic A" {
		t.Fatalf("initial pick = %+v, %v", src, ok)
	}

	src, _ = r.Failover([]string{"Mic A", "Mic B", "HDMI"})
	if src.Name != "Mic B" || r.Index() != 1 {
		t.Fatalf("second pick = %+v (index %d)", src, r.Index())
	}

	// Mic A unplugged, Mic B failing: fallback to something else.
	src, _ = r.Failover([]string{"Mic B", "HDMI"})
	if src.Name != "HDMI" || src.Rank != -1 {
		t.Fatalf("fallback pick = %+v", src)
	}

	// From a fallback the preferred list is scanned from the top.
	src, _ = r.Failover([]string{"Mic A", "HDMI"})
	if src.Name != "Mic A" {
		t.Fatalf("recovery pick = %+v", src)
	}

	if _, ok := r.Failover(nil); ok {
		t.Fatal("expected no source")
	}
	if _, ok := r.Active(); ok {
		t.Error("registry should have no active source")
	}
}
