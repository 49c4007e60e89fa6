package tmatch

import (
	"errors"
	"image"
	"testing"
)

// peakSurface returns a 3x3 surface filled with fill and v at p.
func peakSurface(fill, v float32, p image.Point) *Image {
	return surfaceWith(3, 3, fill, map[image.Point]float32{p: v})
}

func TestSingleMatcher_ThresholdDirection(t *testing.T) {
	tests := []struct {
		name      string
		opts      MatcherOptions
		surface   *Image
		wantMatch bool
		wantAt    image.Point
	}{
		{
			name:      "sqdiff_normed passes below threshold",
			opts:      MatcherOptions{Method: SumOfSquaredDifferenceNormed, Threshold: 0.2},
			surface:   peakSurface(0.5, 0.1, image.Pt(2, 1)),
			wantMatch: true,
			wantAt:    image.Pt(2, 1),
		},
		{
			name:    "sqdiff_normed fails at threshold",
			opts:    MatcherOptions{Method: SumOfSquaredDifferenceNormed, Threshold: 0.2},
			surface: peakSurface(0.5, 0.2, image.Pt(2, 1)),
		},
		{
			name:      "ccorr_normed passes above threshold",
			opts:      MatcherOptions{Method: CrossCorrelationNormed, Threshold: 0.8},
			surface:   peakSurface(0.1, 0.9, image.Pt(0, 2)),
			wantMatch: true,
			wantAt:    image.Pt(0, 2),
		},
		{
			name:    "ccorr_normed low value finds nothing",
			opts:    MatcherOptions{Method: CrossCorrelationNormed, Threshold: 0.8},
			surface: peakSurface(0, 0.1, image.Pt(0, 2)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&stubBackend{surfaces: []*Image{tt.surface}})
			res, err := NewSingleMatcher(e).MatchTemplate(NewImage(5, 5), NewImage(3, 3), tt.opts)
			if err != nil {
				t.Fatalf("MatchTemplate: %v", err)
			}
			if res.Surface != tt.surface {
				t.Error("result does not carry the computed surface")
			}
			if !tt.wantMatch {
				if res.Match != nil {
					t.Errorf("got match %+v, want none", *res.Match)
				}
				return
			}
			if res.Match == nil {
				t.Fatal("got no match")
			}
			if res.Match.Location != tt.wantAt || res.Match.Width != 3 || res.Match.Height != 3 {
				t.Errorf("match = %+v, want 3x3 at %v", *res.Match, tt.wantAt)
			}
		})
	}
}

func TestSingleMatcher_RejectsMismatchedThreshold(t *testing.T) {
	b := &stubBackend{}
	e := NewEngine(b)
	opts := MatcherOptions{Method: SumOfSquaredDifference, Threshold: 0}
	if _, err := NewSingleMatcher(e).MatchTemplate(NewImage(5, 5), NewImage(3, 3), opts); !errors.Is(err, ErrConfigurationMismatch) {
		t.Errorf("err = %v, want ErrConfigurationMismatch", err)
	}
	if b.calls != 0 {
		t.Error("invalid options must fail before any computation")
	}
}

func TestMultiMatcher(t *testing.T) {
	surface := surfaceWith(12, 12, 0, map[image.Point]float32{
		{1, 1}: 0.9, {2, 2}: 0.92, {9, 9}: 0.85,
	})
	e := NewEngine(&stubBackend{surfaces: []*Image{surface}})
	m := NewMultiMatcher(e)

	res, err := m.MatchTemplate(NewImage(14, 14), NewImage(3, 3), MethodDefault(CrossCorrelationNormed))
	if err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(res.Matches))
	}
	if got := res.Matches[0]; got.Location != image.Pt(2, 2) || got.Value != 0.92 {
		t.Errorf("best match = %+v", got)
	}
	if got := res.Matches[1].Rect(); got != image.Rect(9, 9, 12, 12) {
		t.Errorf("second match rect = %v", got)
	}
}

func TestSelectMulti_Connected(t *testing.T) {
	s := surfaceWith(10, 10, 0, map[image.Point]float32{{0, 0}: 0.85, {4, 0}: 0.9, {2, 1}: 0.95})
	opts := MethodDefault(CrossCorrelationNormed)
	if got := SelectMulti(s, 3, 3, opts, MergeGreedy); len(got) != 2 {
		t.Errorf("greedy = %v, want 2 matches", got)
	}
	if got := SelectMulti(s, 3, 3, opts, MergeConnected); len(got) != 1 {
		t.Errorf("connected = %v, want 1 match", got)
	}
}

func TestBestMatcher_PicksBestCandidate(t *testing.T) {
	surfaces := []*Image{
		peakSurface(0, 0.9, image.Pt(1, 1)),
		peakSurface(0, 0.95, image.Pt(2, 0)),
		peakSurface(0, 0.80, image.Pt(0, 0)),
	}
	e := NewEngine(&stubBackend{surfaces: surfaces})
	imgs := []*Image{NewImage(5, 5), NewImage(5, 5), NewImage(5, 5)}

	res, err := NewBestMatcher(e).MatchTemplate(imgs, NewImage(3, 3), MethodDefault(CrossCorrelationNormed))
	if err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if res.Best == nil {
		t.Fatal("no best candidate")
	}
	if res.Best.Index != 1 || res.Best.Match.Location != image.Pt(2, 0) {
		t.Errorf("best = %+v, want index 1 at (2,0)", *res.Best)
	}
	if len(res.Singles) != 3 {
		t.Fatalf("len(Singles) = %d, want 3", len(res.Singles))
	}
	// 0.80 equals the threshold and does not pass.
	if res.Singles[2].Match != nil {
		t.Errorf("candidate 2 matched at threshold: %+v", *res.Singles[2].Match)
	}
}

func TestSelectBest(t *testing.T) {
	single := func(v float32) SingleResult {
		return SingleResult{Match: &RectMatch{Match: Match{Value: v}, Width: 1, Height: 1}}
	}

	tests := []struct {
		name    string
		method  Method
		singles []SingleResult
		want    int // -1 for none
	}{
		{"higher wins", CrossCorrelationNormed, []SingleResult{single(0.9), single(0.95), single(0.85)}, 1},
		{"lower wins", SumOfSquaredDifferenceNormed, []SingleResult{single(0.1), single(0.05), single(0.15)}, 1},
		{"tie keeps first", CrossCorrelationNormed, []SingleResult{single(0.9), single(0.9)}, 0},
		{"skips misses", CrossCorrelationNormed, []SingleResult{{}, single(0.85)}, 1},
		{"none", CrossCorrelationNormed, []SingleResult{{}, {}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBest(tt.singles, tt.method)
			if tt.want < 0 {
				if got != nil {
					t.Errorf("got %+v, want nil", *got)
				}
				return
			}
			if got == nil || got.Index != tt.want {
				t.Errorf("got %+v, want index %d", got, tt.want)
			}
		})
	}
}

func TestBestMatcher_WrapsCandidateError(t *testing.T) {
	e := NewEngine(NewSoftwareBackend(1))
	defer e.Close()
	imgs := []*Image{NewImage(5, 5), NewImage(2, 2)}
	_, err := NewBestMatcher(e).MatchTemplate(imgs, NewImage(3, 3), DefaultMatcherOptions())
	if !errors.Is(err, ErrDimension) {
		t.Errorf("err = %v, want ErrDimension", err)
	}
}

func TestRectMatch(t *testing.T) {
	m := RectMatch{Match: Match{Location: image.Pt(10, 20)}, Width: 6, Height: 4}
	if got := m.Center(); got != image.Pt(13, 22) {
		t.Errorf("Center() = %v", got)
	}
	if got := m.Offset(image.Pt(5, -5)).Rect(); got != image.Rect(15, 15, 21, 19) {
		t.Errorf("Offset().Rect() = %v", got)
	}
}
