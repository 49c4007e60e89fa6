package tmatch

import "fmt"

// SingleResult is the outcome of a SingleMatcher call.
type SingleResult struct {
	// Match is the best match, or nil if it did not pass the threshold.
	Match *RectMatch
	// Surface is the correlation surface the match was taken from.
	Surface *Image
}

// MultiResult is the outcome of a MultiMatcher call.
type MultiResult struct {
	// Matches holds every passing match, best first.
	Matches []RectMatch
	// Surface is the correlation surface the matches were taken from.
	Surface *Image
}

// BestCandidate identifies the winning image of a BestMatcher call.
type BestCandidate struct {
	Index int
	Match RectMatch
}

// BestResult is the outcome of a BestMatcher call.
type BestResult struct {
	// Best is the winning candidate, or nil if no image passed.
	Best *BestCandidate
	// Singles holds the per-image results in input order.
	Singles []SingleResult
}

// SingleMatcher finds the single best match of a template.
type SingleMatcher struct {
	engine *Engine
}

// NewSingleMatcher returns a matcher running on engine.
func NewSingleMatcher(engine *Engine) *SingleMatcher {
	return &SingleMatcher{engine: engine}
}

// MatchTemplate computes the surface and returns its extremum in the
// method's better direction, if that extremum passes opts.Threshold.
func (m *SingleMatcher) MatchTemplate(img, tmpl *Image, opts MatcherOptions) (SingleResult, error) {
	if err := opts.Validate(); err != nil {
		return SingleResult{}, err
	}
	surface, err := m.engine.MatchTemplate(img, tmpl, opts.Method, opts.Padding)
	if err != nil {
		return SingleResult{}, err
	}
	return SingleResult{
		Match:   SelectSingle(surface, tmpl.Width, tmpl.Height, opts),
		Surface: surface,
	}, nil
}

// SelectSingle returns the best match on surface if it passes opts.Threshold.
func SelectSingle(surface *Image, tw, th int, opts MatcherOptions) *RectMatch {
	if surface.Empty() {
		return nil
	}
	best := FindExtremes(surface).Best(opts.Method)
	if !opts.Passes(best.Value) {
		return nil
	}
	return &RectMatch{Match: best, Width: tw, Height: th}
}

// MultiMatcher finds every match of a template, one per neighborhood.
type MultiMatcher struct {
	engine *Engine

	// Merge selects the suppression algorithm. The zero value is MergeGreedy.
	Merge MergeMode
}

// NewMultiMatcher returns a matcher running on engine with greedy
// suppression.
func NewMultiMatcher(engine *Engine) *MultiMatcher {
	return &MultiMatcher{engine: engine}
}

// MatchTemplate computes the surface and extracts all passing peaks.
func (m *MultiMatcher) MatchTemplate(img, tmpl *Image, opts MatcherOptions) (MultiResult, error) {
	if err := opts.Validate(); err != nil {
		return MultiResult{}, err
	}
	surface, err := m.engine.MatchTemplate(img, tmpl, opts.Method, opts.Padding)
	if err != nil {
		return MultiResult{}, err
	}
	return MultiResult{
		Matches: SelectMulti(surface, tmpl.Width, tmpl.Height, opts, m.Merge),
		Surface: surface,
	}, nil
}

// SelectMulti extracts all passing peaks from surface.
func SelectMulti(surface *Image, tw, th int, opts MatcherOptions, merge MergeMode) []RectMatch {
	var found []Match
	switch merge {
	case MergeConnected:
		found = FindMatchesMerged(surface, tw, th, opts.Method, opts.Threshold)
	default:
		found = FindMatches(surface, tw, th, opts.Method, opts.Threshold)
	}

	out := make([]RectMatch, 0, len(found))
	for _, f := range found {
		// Extraction already thresholds; both checks must agree.
		if !opts.Passes(f.Value) {
			continue
		}
		out = append(out, RectMatch{Match: f, Width: tw, Height: th})
	}
	return out
}

// BestMatcher picks the image, among several candidates, that contains the
// best match of one template.
type BestMatcher struct {
	single SingleMatcher
}

// NewBestMatcher returns a matcher running on engine.
func NewBestMatcher(engine *Engine) *BestMatcher {
	return &BestMatcher{single: SingleMatcher{engine: engine}}
}

// MatchTemplate runs SingleMatcher on every image and returns the candidate
// whose passing match is best under the method's direction, using IEEE 754
// total ordering. On ties the lowest index wins.
func (m *BestMatcher) MatchTemplate(imgs []*Image, tmpl *Image, opts MatcherOptions) (BestResult, error) {
	if err := opts.Validate(); err != nil {
		return BestResult{}, err
	}
	res := BestResult{Singles: make([]SingleResult, 0, len(imgs))}
	for i, img := range imgs {
		single, err := m.single.MatchTemplate(img, tmpl, opts)
		if err != nil {
			return BestResult{}, fmt.Errorf("tmatch: candidate %d: %w", i, err)
		}
		res.Singles = append(res.Singles, single)
	}
	res.Best = SelectBest(res.Singles, opts.Method)
	return res, nil
}

// SelectBest returns the best passing match among singles, or nil.
func SelectBest(singles []SingleResult, method Method) *BestCandidate {
	var best *BestCandidate
	for i, s := range singles {
		if s.Match == nil {
			continue
		}
		if best == nil {
			best = &BestCandidate{Index: i, Match: *s.Match}
			continue
		}
		c := totalCompare(s.Match.Value, best.Match.Value)
		if method.LowerIsBetter() {
			c = -c
		}
		if c > 0 {
			best = &BestCandidate{Index: i, Match: *s.Match}
		}
	}
	return best
}
