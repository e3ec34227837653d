package distinct

import "math"

const (
	// float64ExponentShift is the position of the exponent in an IEEE-754 double.
	float64ExponentShift = 52

	// float64ExponentBias is the exponent bias of an IEEE-754 double.
	float64ExponentBias = 1023
)

// pow2Neg returns 2^-k for 0 <= k <= 1022 by constructing the bit pattern,
// which is exact on every platform.
func pow2Neg(k int) float64 {
	return math.Float64frombits(uint64(float64ExponentBias-k) << float64ExponentShift)
}

// scalePow2Neg returns x*2^-k for a normal x with an exponent that stays
// normal after scaling.
func scalePow2Neg(x float64, k int) float64 {
	return math.Float64frombits(math.Float64bits(x) - uint64(k)<<float64ExponentShift)
}

// sumScaledCounts returns the sum of counts[k]*2^-k.
func sumScaledCounts(counts []int) float64 {
	sum := 0.0

	for k, c := range counts {
		if c > 0 {
			sum += scalePow2Neg(float64(c), k)
		}
	}

	return sum
}

// sigma evaluates x + sum_{k>=1} x^(2^k) * 2^(k-1), the small-range correction
// of the HyperLogLog raw estimator.
func sigma(x float64) float64 {
	if x <= 0 {
		return 0
	}

	if x >= 1 {
		return math.Inf(1)
	}

	z := 1.0
	sum := x

	for {
		x *= x
		prev := sum
		sum += float64(x * z)
		z += z

		if !(prev < sum) {
			return sum
		}
	}
}

// tau evaluates the large-range correction of the corrected HyperLogLog raw
// estimator, (1 - x - sum_{k>=1} (1 - x^(2^-k))^2 * 2^-k) / 3.
func tau(x float64) float64 {
	if x == 0 || x == 1 {
		return 0
	}

	y := 1.0
	z := 1 - x

	for {
		x = math.Sqrt(x)
		prev := z
		y *= 0.5
		d := 1 - x
		z -= float64(float64(d*d) * y)

		if !(prev > z) {
			return z / 3
		}
	}
}

// xi evaluates y + sum_{k>=1} y^(2^k) * x^k, used for the empty registers of
// UltraLogLog.
func xi(x, y float64) float64 {
	if y <= 0 {
		return 0
	}

	if y >= 1 {
		return math.Inf(1)
	}

	z := x
	sum := y

	for {
		y *= y
		prev := sum
		sum += float64(y * z)
		z *= x

		if !(prev < sum) {
			return sum
		}
	}
}
