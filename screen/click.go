package screen

import (
	"errors"
	"image"
	"math/rand/v2"

	"github.com/gogpu/tmatch"
)

// ErrEmptyRect is returned when asked to click inside an empty rectangle.
var ErrEmptyRect = errors.New("screen: empty click rectangle")

// Clicker injects a mouse click at screen coordinates.
type Clicker interface {
	Click(x, y int) error
}

// ClickerFunc adapts a function to the Clicker interface.
type ClickerFunc func(x, y int) error

// Click calls f.
func (f ClickerFunc) Click(x, y int) error { return f(x, y) }

// RandomPoint picks a uniformly random point inside r. A nil rng uses the
// global generator.
func RandomPoint(r image.Rectangle, rng *rand.Rand) (image.Point, error) {
	r = r.Canon()
	if r.Empty() {
		return image.Point{}, ErrEmptyRect
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	return image.Pt(r.Min.X+intN(r.Dx()), r.Min.Y+intN(r.Dy())), nil
}

// ClickInRect clicks a random point inside r. Randomizing the point avoids
// hitting the exact same pixel on every click.
func ClickInRect(c Clicker, r image.Rectangle, rng *rand.Rand) (image.Point, error) {
	p, err := RandomPoint(r, rng)
	if err != nil {
		return image.Point{}, err
	}
	return p, c.Click(p.X, p.Y)
}

// ClickMatch clicks inside the rectangle covered by m, shifted by origin.
// origin is where the searched image sits on screen, for example the minimum
// point of a capture rectangle.
func ClickMatch(c Clicker, m tmatch.RectMatch, origin image.Point, rng *rand.Rand) (image.Point, error) {
	return ClickInRect(c, m.Rect().Add(origin), rng)
}
