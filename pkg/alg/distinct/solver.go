package distinct

import "math"

// Coefficients of the truncated power series h(2z) = z - z^2/3 + z^4/45 -
// z^6/472.5, evaluated for z <= 1/4. The first omitted term is z^8/4725.
const (
	hSeriesC2 = -1. / 3.
	hSeriesC4 = 1. / 45.
	hSeriesC6 = -1. / 472.5
)

// SolveMaximumLikelihoodEquation returns the x >= 0 that maximizes
//
//	exp(-x*a) * prod_k (1 - exp(-x/2^k))^b[k]
//
// to within the relative error relErr. a must be nonnegative and b must hold
// nonnegative counts with len(b) <= 64. It returns +Inf if a is 0 and 0 if
// all counts are 0.
//
// The root of the derivative is found with a secant iteration on
//
//	g(x) = a*x + sum_k b[k] * h(x/2^k)
//
// where h(x) = 1 - x/(e^x - 1) is concave and increasing, starting from a
// lower bound obtained with Jensen's inequality. h is evaluated through a
// power series at a tiny argument followed by the doubling recurrence
// h(2y) = (y + h(y)(1-h(y))) / (y + 1 - h(y)), which avoids the cancellation
// of the closed form. Products are rounded explicitly so that no platform
// fuses them into multiply-add instructions.
func SolveMaximumLikelihoodEquation(a float64, b []int, relErr float64) float64 {
	if a == 0 {
		return math.Inf(1)
	}

	kMax := len(b) - 1
	for kMax >= 0 && b[kMax] == 0 {
		kMax--
	}

	if kMax < 0 {
		return 0
	}

	kMin := kMax
	s1 := 0.0
	s2 := 0.0

	for k := kMax; k >= 0; k-- {
		if b[k] > 0 {
			c := float64(b[k])
			s1 += c
			s2 += scalePow2Neg(c, k)
			kMin = k
		}
	}

	var x float64
	if s2 <= 1.5*a {
		x = s1 / (float64(0.5*s2) + a)
	} else {
		x = math.Log1p(s2/a) * (s1 / s2)
	}

	gPrev := 0.0
	deltaX := x

	for deltaX > x*relErr {
		kappa := math.Ilogb(x) + 2
		// z = x/2^(max(kMax, kappa)+1) is at most 1/4.
		z := scalePow2Neg(x, max(kMax, kappa)+1)
		z2 := z * z
		h := hSeriesC4 + float64(z2*hSeriesC6)
		h = hSeriesC2 + float64(z2*h)
		h = z + float64(z2*h)

		for k := kappa - 1; k >= kMax; k-- {
			hc := 1 - h
			h = (z + float64(h*hc)) / (z + hc)
			z += z
		}

		g := float64(b[kMax]) * h

		for k := kMax - 1; k >= kMin; k-- {
			hc := 1 - h
			h = (z + float64(h*hc)) / (z + hc)
			z += z
			g += float64(float64(b[k]) * h)
		}

		g += float64(x * a)

		if gPrev < g && g <= s1 {
			deltaX *= (g - s1) / (gPrev - g)
		} else {
			deltaX = 0
		}

		x += deltaX
		gPrev = g
	}

	return x
}
