package logic

import (
	"errors"
	"math"
)

// MQ-303A alcohol curve: log10(Rs/R0) = 0.328 - 0.55*log10(ppm).
const (
	curveIntercept = 0.328
	curveSlope     = -0.55

	// PPMPerBAC converts breath-alcohol PPM to blood-alcohol content.
	PPMPerBAC = 2600.0
)

// ErrNoBaseline is returned by Ratio when RS_air is not positive.
var ErrNoBaseline = errors.New("baseline resistance must be positive")

// Ratio returns RS_gas / RS_air.
func Ratio(rsGas, rsAir float64) (float64, error) {
	if !(rsAir > 0) {
		return 0, ErrNoBaseline
	}
	return rsGas / rsAir, nil
}

// PPM converts a resistance ratio to an alcohol concentration in PPM.
// A non-positive (or NaN) ratio has no logarithm and yields 0.
func PPM(ratio float64) float64 {
	if !(ratio > 0) {
		return 0
	}
	return math.Pow(10, (math.Log10(ratio)-curveIntercept)/curveSlope)
}

// BAC converts PPM to blood-alcohol content.
func BAC(ppm float64) float64 {
	return ppm / PPMPerBAC
}
