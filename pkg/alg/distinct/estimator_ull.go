package distinct

import "math"

// Classes of registers below the regular range, indexed by the offset of the
// register value from 4(p+1).
const (
	ullClassEmpty     = 0 // register is 0
	ullClassLevelLow  = 1 // only level p-1 observed
	ullClassLevelHigh = 2 // only level p observed
	ullClassLevelBoth = 3 // levels p-1 and p observed

	ullOffsetLevelLow  = -8
	ullOffsetLevelHigh = -4
	ullOffsetLevelBoth = -2
)

// ullSmallRangeClass maps a negative register offset to its class.
func ullSmallRangeClass(t int) int {
	switch t {
	case ullOffsetLevelLow:
		return ullClassLevelLow
	case ullOffsetLevelHigh:
		return ullClassLevelHigh
	case ullOffsetLevelBoth:
		return ullClassLevelBoth
	default:
		return ullClassEmpty
	}
}

// ullOptimalFGRAEstimate computes factor * S^(-1/tau) where S sums one
// contribution per register. Registers in the regular range use the
// precomputed table. Registers below it and registers at the saturated level
// carry too little information for a fixed table and instead contribute their
// expected values under a maximum-likelihood fit of the respective counts.
func ullOptimalFGRAEstimate(p int, state []byte) float64 {
	m := len(state)
	off := (p + 1) << 2

	var small, saturated [4]int

	sum := 0.0

	for _, r := range state {
		if r >= ullSaturatedRegister {
			saturated[r&3]++

			continue
		}

		t := int(r) - off
		if t >= 0 {
			sum += ullRegisterContributions[t]
		} else {
			small[ullSmallRangeClass(t)]++
		}
	}

	sum += ullSmallRangeContribution(m, small)
	sum += ullLargeRangeContribution(p, m, saturated)

	return ullEstimationFactors[p-MinP] * math.Pow(sum, ullMinusTauInv)
}

// ullSmallRangeContribution returns the summed contributions of registers
// below the regular range. z estimates exp(-n/m) from the class counts by
// solving the quadratic maximum-likelihood equation.
func ullSmallRangeContribution(m int, c [4]int) float64 {
	alpha := c[ullClassEmpty] + c[ullClassLevelLow]
	beta := alpha + c[ullClassLevelHigh] + c[ullClassLevelBoth]

	if beta == 0 {
		return 0
	}

	gamma := 2*(beta+alpha) + 4*(c[ullClassEmpty]+c[ullClassLevelHigh])
	z := ullCalculateZ(m, alpha, beta, gamma)
	sum := 0.0

	if alpha > 0 {
		z2 := z * z

		if n := c[ullClassEmpty]; n > 0 {
			inner := ullKappa2 + xi(ullKappa1, z2*z2*z)/z
			sum += float64(n) * (z + ullKappa1*(z2+ullKappa1*inner))
		}

		if n := c[ullClassLevelLow]; n > 0 {
			sum += float64(n) * (z + ullKappa1*(z2+ullKappa2))
		}
	}

	if n := c[ullClassLevelHigh]; n > 0 {
		sum += float64(n) * (z + ullKappa3)
	}

	if n := c[ullClassLevelBoth]; n > 0 {
		sum += float64(n) * (z + ullKappa2)
	}

	return sum
}

// ullCalculateZ returns x^4 where x is the positive root of the quadratic
// likelihood equation of the small-range class counts.
func ullCalculateZ(m, alpha, beta, gamma int) float64 {
	mma := float64(m - alpha)
	twom3b := float64(2*(m+beta) + 4*beta)
	x := (math.Sqrt(float64(gamma)*twom3b+mma*mma) - mma) / twom3b
	x *= x
	x *= x

	return x
}

// ullLargeRangeContribution returns the summed expected contributions of
// saturated registers, indexed by their two flag bits (levels 62 and 61).
//
// Let u = exp(-n/m * 2^-(64-p)) be the probability that a register saw no
// hash at level 63. Each register independently is saturated with
// probability 1-u, has level 62 unset with probability u and level 61 unset
// with probability u^2. The maximum-likelihood u is the root of
// (A+B+C)u^2 + (C-B)u - A = 0. Given u, the true level of a saturated
// register would have been 63+j with probability (1-v_j)v_j/(1-u), where
// v_j = u^(2^-(j+1)), and its two flags follow from the levels below.
func ullLargeRangeContribution(p, m int, c [4]int) float64 {
	s := c[0] + c[1] + c[2] + c[3]
	if s == 0 {
		return 0
	}

	a := float64(m - s + 3*c[0] + c[1] + 2*c[2])
	b := float64(c[1] + c[3])
	cc := float64(s + c[1] + c[2] + 2*c[3])
	total := a + b + cc
	d := cc - b
	u := (math.Sqrt(d*d+4*a*total) - d) / (2 * total)

	if u <= 0 {
		return 0
	}

	base := math.Pow(2, -ullTau*float64(ullSaturatedLevel-p))
	sum := 0.0

	for flags, n := range c {
		if n > 0 {
			sum += float64(n) * base * ullSaturatedExpectation(u, flags)
		}
	}

	return sum
}

// ullSaturatedExpectation returns the expected value of eta times
// 2^(-tau*j) for a saturated register with the given flags, where 63+j is
// the unobserved true level.
func ullSaturatedExpectation(u float64, flags int) float64 {
	high := flags >> 1
	v0 := math.Sqrt(u)
	v1 := math.Sqrt(v0)
	decay := 1 / ullKappa1

	sum := (1 - v0) * v0 * ullEta[flags]
	sum += (1 - v1) * v1 * decay * ((1-v0)*ullEta[2+high] + v0*ullEta[high])

	vPrev2, vPrev1 := v0, v1
	weight := decay

	const maxExtraLevels = hashBits

	for range maxExtraLevels {
		v := math.Sqrt(vPrev1)
		weight *= decay

		eta := (1-vPrev1)*(1-vPrev2)*ullEta[3] +
			(1-vPrev1)*vPrev2*ullEta[2] +
			vPrev1*(1-vPrev2)*ullEta[1] +
			vPrev1*vPrev2*ullEta[0]

		prev := sum
		sum += (1 - v) * v * weight * eta

		if !(prev < sum) {
			break
		}

		vPrev2, vPrev1 = vPrev1, v
	}

	return sum / (1 - u)
}

// ullMaximumLikelihoodEstimate builds the likelihood of all levels whose
// state is known: for a regular register the highest level u, the two flags
// below it and every level above u. Levels are numbered by the exponent k of
// their per-register probability 2^-k.
func ullMaximumLikelihoodEstimate(p int, state []byte) float64 {
	m := len(state)
	q := hashBits - p
	off := (p + 1) << 2

	aCounts := make([]int, q+1)
	b := make([]int, q+1)

	for _, r := range state {
		t := int(r) - off
		if t < 0 {
			switch ullSmallRangeClass(t) {
			case ullClassEmpty:
				aCounts[0]++
			case ullClassLevelLow:
				aCounts[1]++
				b[1]++
			case ullClassLevelHigh:
				aCounts[1]++
				aCounts[2]++
				b[2]++
			case ullClassLevelBoth:
				aCounts[2]++
				b[1]++
				b[2]++
			}

			continue
		}

		n := ullLevelCount(r, p)
		if n < q {
			aCounts[n+1]++
			b[n+1]++
		} else {
			b[q]++
		}

		if r&2 != 0 {
			b[n]++
		} else {
			aCounts[n]++
		}

		if r&1 != 0 {
			b[n-1]++
		} else {
			aCounts[n-1]++
		}
	}

	a := sumScaledCounts(aCounts)
	relErr := mlRelativeErrorFraction * UltraLogLogMLRelativeStandardError(p)
	x := SolveMaximumLikelihoodEquation(a, b, relErr)

	return float64(m) * x / (1 + ullMLBias/float64(m))
}
