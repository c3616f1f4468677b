// Package units provides typed length values so that a dimension's unit is
// part of its type. Job sizes arrive in centimeters while paper sizes are
// quoted in inches; mixing them requires an explicit conversion.
package units

import "fmt"

// cmPerInch is the exact number of centimeters in one inch.
const cmPerInch = 2.54

// Centimeter is a length in centimeters.
type Centimeter float64

// Inch is a length in inches.
type Inch float64

// Inches converts a centimeter length to inches.
func (c Centimeter) Inches() Inch {
	return Inch(float64(c) / cmPerInch)
}

// Centimeters converts an inch length to centimeters.
func (i Inch) Centimeters() Centimeter {
	return Centimeter(float64(i) * cmPerInch)
}

func (c Centimeter) String() string {
	return fmt.Sprintf("%gcm", float64(c))
}

func (i Inch) String() string {
	return fmt.Sprintf("%gin", float64(i))
}
