package emotion

import (
	"testing"
)

func TestWindowCapacityEviction(t *testing.T) {
	w := NewWindow(10)

	sequence := []Label{
		LabelAngry, LabelDisgust, LabelFear, LabelHappy, LabelNeutral,
		LabelSad, LabelSurprise, LabelHappy, LabelHappy, LabelHappy,
		LabelNeutral, // 11th push evicts the first
	}
	for _, l := range sequence {
		w.Push(l)
	}

	if got := w.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}

	snap := w.Snapshot()
	if snap[0] != LabelDisgust {
		t.Errorf("oldest entry = %s, want %s (first push evicted)", snap[0], LabelDisgust)
	}
	if snap[len(snap)-1] != LabelNeutral {
		t.Errorf("newest entry = %s, want %s", snap[len(snap)-1], LabelNeutral)
	}
}

func TestWindowMode(t *testing.T) {
	tests := []struct {
		name   string
		pushes []Label
		want   Label
		wantOK bool
	}{
		{
			name:   "empty window has no mode",
			pushes: nil,
			wantOK: false,
		},
		{
			name:   "single label",
			pushes: []Label{LabelSad},
			want:   LabelSad,
			wantOK: true,
		},
		{
			name:   "clear majority",
			pushes: []Label{LabelHappy, LabelHappy, LabelSad},
			want:   LabelHappy,
			wantOK: true,
		},
		{
			name:   "tie resolved by most recent occurrence",
			pushes: []Label{LabelHappy, LabelSad, LabelHappy, LabelSad},
			want:   LabelSad,
			wantOK: true,
		},
		{
			name:   "tie the other way",
			pushes: []Label{LabelSad, LabelHappy, LabelSad, LabelHappy},
			want:   LabelHappy,
			wantOK: true,
		},
		{
			name:   "majority beats recency",
			pushes: []Label{LabelNeutral, LabelNeutral, LabelNeutral, LabelAngry},
			want:   LabelNeutral,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(10)
			for _, l := range tt.pushes {
				w.Push(l)
			}
			got, ok := w.Mode()
			if ok != tt.wantOK {
				t.Fatalf("Mode() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Mode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWindowModeAfterEviction(t *testing.T) {
	w := NewWindow(3)

	// happy is pushed three times but two of them fall out of the window.
	for _, l := range []Label{LabelHappy, LabelHappy, LabelHappy, LabelSad, LabelSad} {
		w.Push(l)
	}

	got, ok := w.Mode()
	if !ok {
		t.Fatal("Mode() returned not ok for non-empty window")
	}
	if got != LabelSad {
		t.Errorf("Mode() = %s, want %s (evicted labels must not count)", got, LabelSad)
	}
}

func TestParse(t *testing.T) {
	for _, l := range Labels {
		got, err := Parse(string(l))
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", l, err)
		}
		if got != l {
			t.Errorf("Parse(%q) = %s", l, got)
		}
	}

	if _, err := Parse("bored"); err == nil {
		t.Error("Parse accepted a label outside the vocabulary")
	}
	if _, err := Parse(""); err == nil {
		t.Error("Parse accepted an empty label")
	}
}
