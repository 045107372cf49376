package model

// Point holds the indicator values aligned to one bar.
// Values are NaN until the matching Ready flag is set.
type Point struct {
	BBI      float64
	K        float64
	D        float64
	J        float64
	BBIReady bool
	KDJReady bool
}

// IndicatorSeries is aligned 1:1 with the bars it was computed from.
type IndicatorSeries []Point

// Last returns the point for the latest bar.
func (s IndicatorSeries) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}
