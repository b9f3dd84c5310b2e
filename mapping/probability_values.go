// Package mapping implements the submap model of the local SLAM core:
// occupancy probability grids over a quantized correspondence cost
// representation, range data insertion via ray casting, and the rolling
// pair of active submaps scans are matched against and inserted into.
package mapping

import "math"

// MinProbability and MaxProbability bound the occupancy probability a grid
// cell can represent. Probabilities outside the interval clamp to the
// endpoints before quantization.
const (
	MinProbability = 0.1
	MaxProbability = 0.9
)

const (
	// unknownValue marks a cell that has never been observed.
	unknownValue = uint16(0)
	// updateMarker is OR'd into a cell value on the first lookup table
	// application of a scan, making later applications within the same
	// scan no-ops until FinishUpdate clears it.
	updateMarker = uint16(1) << 15
	// maxCellValue is the largest quantized correspondence cost.
	maxCellValue = uint16(32767)
)

// Odds returns p / (1 - p).
func Odds(probability float64) float64 {
	return probability / (1.0 - probability)
}

// ProbabilityFromOdds inverts Odds.
func ProbabilityFromOdds(odds float64) float64 {
	return odds / (odds + 1.0)
}

// ClampProbability clamps probability to [MinProbability, MaxProbability].
func ClampProbability(probability float64) float64 {
	return math.Min(math.Max(probability, MinProbability), MaxProbability)
}

// ProbabilityToValue quantizes a probability to the 1..32767 cell value
// range. The probability is clamped first, so every probability maps to a
// valid known-cell value; 0 remains reserved for unknown cells.
func ProbabilityToValue(probability float64) uint16 {
	scale := float64(maxCellValue-1) / (MaxProbability - MinProbability)
	value := math.Round((ClampProbability(probability)-MinProbability)*scale) + 1
	return uint16(value)
}

// valueToProbabilityTable maps every marker-free cell value to its
// probability, with the unknown value mapping to 0.5. Precomputed so that
// dequantization on the scoring hot path is a single index.
var valueToProbabilityTable = precomputeValueToProbability()

func precomputeValueToProbability() []float64 {
	table := make([]float64, updateMarker)
	table[unknownValue] = 0.5
	step := (MaxProbability - MinProbability) / float64(maxCellValue-1)
	for value := int(unknownValue) + 1; value <= int(maxCellValue); value++ {
		table[value] = MinProbability + float64(value-1)*step
	}
	return table
}

// ValueToProbability dequantizes a cell value, ignoring the update marker
// bit. The unknown value dequantizes to 0.5.
func ValueToProbability(value uint16) float64 {
	return valueToProbabilityTable[value&^updateMarker]
}

// ComputeLookupTableToApplyOdds returns a table mapping every marker-free
// cell value to its value after a single Bayesian update by the given odds.
// All entries carry the update marker, so applying the table through
// ProbabilityGrid.ApplyLookupTable is idempotent within one scan.
func ComputeLookupTableToApplyOdds(odds float64) []uint16 {
	result := make([]uint16, updateMarker)
	result[unknownValue] = updateMarker + ProbabilityToValue(ProbabilityFromOdds(odds))
	for value := int(unknownValue) + 1; value <= int(maxCellValue); value++ {
		updated := ProbabilityFromOdds(odds * Odds(ValueToProbability(uint16(value))))
		result[value] = updateMarker + ProbabilityToValue(updated)
	}
	return result
}

// Logit returns ln(p / (1 - p)).
func Logit(probability float64) float64 {
	return math.Log(probability / (1.0 - probability))
}

// MinLogOdds and MaxLogOdds bound the log-odds byte encoding used for grid
// serialization.
var (
	MinLogOdds = Logit(MinProbability)
	MaxLogOdds = Logit(MaxProbability)
)

// ProbabilityToLogOddsInteger converts a probability to the 1..255 log-odds
// byte encoding. The byte 0 is reserved for unknown cells.
func ProbabilityToLogOddsInteger(probability float64) uint8 {
	logOdds := Logit(ClampProbability(probability))
	value := math.Round((logOdds-MinLogOdds)*254.0/(MaxLogOdds-MinLogOdds)) + 1
	return uint8(value)
}

// LogOddsIntegerToProbability inverts ProbabilityToLogOddsInteger for the
// known-cell bytes 1..255.
func LogOddsIntegerToProbability(value uint8) float64 {
	logOdds := MinLogOdds + float64(value-1)*(MaxLogOdds-MinLogOdds)/254.0
	return ProbabilityFromOdds(math.Exp(logOdds))
}
