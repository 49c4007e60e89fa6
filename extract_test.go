package tmatch

import (
	"image"
	"math"
	"testing"
)

// surfaceWith returns a w×h surface filled with fill and the given peaks.
func surfaceWith(w, h int, fill float32, peaks map[image.Point]float32) *Image {
	s := NewImage(w, h)
	for i := range s.Pix {
		s.Pix[i] = fill
	}
	for p, v := range peaks {
		s.SetValue(p.X, p.Y, v)
	}
	return s
}

func TestFindExtremes(t *testing.T) {
	s := surfaceWith(4, 3, 0.5, map[image.Point]float32{
		{1, 0}: -1,
		{3, 2}: 2,
		{0, 2}: 2, // later tie at (3,2) must not win
		{2, 1}: float32(math.NaN()),
	})
	x := FindExtremes(s)
	if x.MinValue != -1 || x.MinLocation != image.Pt(1, 0) {
		t.Errorf("min = %v at %v, want -1 at (1,0)", x.MinValue, x.MinLocation)
	}
	if x.MaxValue != 2 || x.MaxLocation != image.Pt(0, 2) {
		t.Errorf("max = %v at %v, want 2 at (0,2)", x.MaxValue, x.MaxLocation)
	}
	if got := x.Best(SumOfSquaredDifference); got.Location != x.MinLocation {
		t.Errorf("Best(sqdiff) = %v, want min", got)
	}
	if got := x.Best(CrossCorrelation); got.Location != x.MaxLocation {
		t.Errorf("Best(ccorr) = %v, want max", got)
	}
}

func TestFindExtremes_AllNaN(t *testing.T) {
	nan := float32(math.NaN())
	s, _ := NewImageFromPix(2, 1, []float32{nan, nan})
	if x := FindExtremes(s); x != (Extremes{}) {
		t.Errorf("FindExtremes(all NaN) = %+v, want zero", x)
	}
}

func TestFindMatches(t *testing.T) {
	tests := []struct {
		name  string
		peaks map[image.Point]float32
		want  []Match
	}{
		{
			name:  "overlapping peaks merge into the better one",
			peaks: map[image.Point]float32{{2, 2}: 0.9, {3, 3}: 0.95},
			want:  []Match{{Location: image.Pt(3, 3), Value: 0.95}},
		},
		{
			name:  "distant peaks stay separate, best first",
			peaks: map[image.Point]float32{{2, 2}: 0.9, {10, 10}: 0.95},
			want: []Match{
				{Location: image.Pt(10, 10), Value: 0.95},
				{Location: image.Pt(2, 2), Value: 0.9},
			},
		},
		{
			name:  "later equal value does not replace",
			peaks: map[image.Point]float32{{2, 2}: 0.9, {4, 2}: 0.9},
			want:  []Match{{Location: image.Pt(2, 2), Value: 0.9}},
		},
		{
			name:  "nothing passes",
			peaks: map[image.Point]float32{{2, 2}: 0.8},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := surfaceWith(20, 20, 0, tt.peaks)
			got := FindMatches(s, 5, 5, CrossCorrelationNormed, 0.8)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d matches %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("match %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindMatches_LowerIsBetter(t *testing.T) {
	s := surfaceWith(20, 20, 1, map[image.Point]float32{{2, 2}: 0.1, {3, 3}: 0.05, {12, 4}: 0.15})
	got := FindMatches(s, 5, 5, SumOfSquaredDifferenceNormed, 0.2)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 matches", got)
	}
	if got[0].Location != image.Pt(3, 3) || got[1].Location != image.Pt(12, 4) {
		t.Errorf("got %v, want (3,3) then (12,4)", got)
	}
}

// In this blob the first two pixels are recorded apart and the third
// overlaps both. Greedy merging keeps two matches, connected merging one.
func TestFindMatchesMerged_Blob(t *testing.T) {
	peaks := map[image.Point]float32{
		{0, 0}: 0.85,
		{4, 0}: 0.9,
		{2, 1}: 0.95,
	}
	s := surfaceWith(10, 10, 0, peaks)

	greedy := FindMatches(s, 3, 3, CrossCorrelationNormed, 0.8)
	if len(greedy) != 2 {
		t.Errorf("greedy got %v, want 2 matches", greedy)
	}

	merged := FindMatchesMerged(s, 3, 3, CrossCorrelationNormed, 0.8)
	if len(merged) != 1 {
		t.Fatalf("merged got %v, want 1 match", merged)
	}
	if want := (Match{Location: image.Pt(2, 1), Value: 0.95}); merged[0] != want {
		t.Errorf("merged = %v, want %v", merged[0], want)
	}
}

func TestFindMatchesMerged_SeparateGroups(t *testing.T) {
	s := surfaceWith(20, 20, 0, map[image.Point]float32{{1, 1}: 0.9, {2, 1}: 0.92, {15, 15}: 0.99})
	got := FindMatchesMerged(s, 3, 3, CrossCorrelationNormed, 0.8)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 matches", got)
	}
	if got[0].Location != image.Pt(15, 15) || got[1].Location != image.Pt(2, 1) {
		t.Errorf("got %v", got)
	}
	if FindMatchesMerged(NewImage(5, 5), 3, 3, CrossCorrelationNormed, 0.8) != nil {
		t.Error("empty candidate set should return nil")
	}
}

func TestParseMergeMode(t *testing.T) {
	for in, want := range map[string]MergeMode{"": MergeGreedy, "Greedy": MergeGreedy, "connected": MergeConnected} {
		got, err := ParseMergeMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMergeMode(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseMergeMode("fuzzy"); err == nil {
		t.Error("ParseMergeMode(fuzzy) should fail")
	}
	if MergeConnected.String() != "connected" {
		t.Errorf("String() = %q", MergeConnected.String())
	}
}

func TestTotalCompare(t *testing.T) {
	nan := float32(math.NaN())
	negZero := float32(math.Copysign(0, -1))
	ordered := []float32{float32(math.Inf(-1)), -1, negZero, 0, 1, float32(math.Inf(1)), nan}
	for i := 1; i < len(ordered); i++ {
		if c := totalCompare(ordered[i-1], ordered[i]); c != -1 {
			t.Errorf("totalCompare(%v, %v) = %d, want -1", ordered[i-1], ordered[i], c)
		}
	}
	if totalCompare(0.5, 0.5) != 0 {
		t.Error("equal values must compare 0")
	}
}
