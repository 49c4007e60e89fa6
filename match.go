package tmatch

import "image"

// Match is one candidate location on a correlation surface.
// Location is the top-left corner of the template on the searched image.
type Match struct {
	Location image.Point
	Value    float32
}

// RectMatch is a Match together with the template size, so it denotes a
// bounding box on the searched image.
type RectMatch struct {
	Match
	Width  int
	Height int
}

// Rect returns the matched bounding box.
func (r RectMatch) Rect() image.Rectangle {
	return image.Rectangle{Min: r.Location, Max: r.Location.Add(image.Pt(r.Width, r.Height))}
}

// Center returns the center of the matched bounding box.
func (r RectMatch) Center() image.Point {
	return r.Location.Add(image.Pt(r.Width/2, r.Height/2))
}

// Offset returns the match translated by d. Used to map matches found in a
// cropped search region back to full-screen coordinates.
func (r RectMatch) Offset(d image.Point) RectMatch {
	r.Location = r.Location.Add(d)
	return r
}
