// Package severity classifies pole misplacement measurements into discrete
// severity bands and maps each band to a display color for the map renderer.
package severity

import (
	"database/sql"
	"math"
)

// Category represents one severity band of the misplacement metric.
type Category string

const (
	Unknown          Category = "unknown"
	Normal           Category = "normal"
	ElevatedPositive Category = "elevated_positive"
	ModeratePositive Category = "moderate_positive"
	SeverePositive   Category = "severe_positive"
	ElevatedNegative Category = "elevated_negative"
	ModerateNegative Category = "moderate_negative"
	SevereNegative   Category = "severe_negative"
)

// Band boundaries in metres of misplacement. The positive and negative
// elevated bands end at different points (0.095 vs 0.10); the asymmetry
// comes from the survey calibration and must not be evened out.
const (
	normalLimit      = 0.07
	elevatedPosLimit = 0.095
	elevatedNegLimit = 0.10
	severeLimit      = 0.15
)

// Classify maps one misplacement value to its severity band. NaN classifies
// as Unknown; every finite float maps to exactly one band.
func Classify(v float64) Category {
	if math.IsNaN(v) {
		return Unknown
	}
	a := math.Abs(v)
	if a < normalLimit {
		return Normal
	}
	if v >= 0 {
		switch {
		case a < elevatedPosLimit:
			return ElevatedPositive
		case a > severeLimit:
			return SeverePositive
		default:
			return ModeratePositive
		}
	}
	switch {
	case a < elevatedNegLimit:
		return ElevatedNegative
	case a > severeLimit:
		return SevereNegative
	default:
		return ModerateNegative
	}
}

// ClassifyNull classifies a nullable metric; a null value is Unknown.
func ClassifyNull(v sql.NullFloat64) Category {
	if !v.Valid {
		return Unknown
	}
	return Classify(v.Float64)
}

// colors is the fixed category → display color table.
var colors = map[Category]string{
	Normal:           "green",
	ElevatedPositive: "yellow",
	ModeratePositive: "orange",
	SeverePositive:   "red",
	ElevatedNegative: "lightblue",
	ModerateNegative: "blue",
	SevereNegative:   "purple",
	Unknown:          "gray",
}

// Color returns the display color name for the category. Unrecognized
// categories fall back to gray.
func (c Category) Color() string {
	if col, ok := colors[c]; ok {
		return col
	}
	return colors[Unknown]
}

// Categories lists every category in legend order.
func Categories() []Category {
	return []Category{
		Normal,
		ElevatedPositive,
		ModeratePositive,
		SeverePositive,
		ElevatedNegative,
		ModerateNegative,
		SevereNegative,
		Unknown,
	}
}
