package distinct

// hllVarianceFactor is 3*ln(2) - 1, the asymptotic relative variance of the
// raw estimator multiplied by the number of registers.
const hllVarianceFactor = 1.0794415416798357

// hllEstimationFactors[p] equals m^2 / (2*ln(2) * (1 + hllVarianceFactor/m))
// with m = 2^p, which makes the raw estimator asymptotically unbiased.
var hllEstimationFactors = [MaxP + 1]float64{
	0,
	0,
	9.08884193855277,
	40.67760431873907,
	172.99391414703106,
	714.5560640781132,
	2905.6322537477818,
	11719.723738552972,
	47075.733045730056,
	188699.0930713932,
	755591.1970832772,
	3023956.9501793,
	1.2099014641293615e7,
	4.8402434765532516e7,
	1.9362249398321322e8,
	7.745154882959671e8,
	3.098112980431337e9,
	1.2392553978741665e10,
	4.9570420031520744e10,
	1.982820883617127e11,
	7.931291699206317e11,
	3.1725183126326094e12,
	1.2690076516433127e13,
	5.076031259754041e13,
	2.0304126345377997e14,
	8.12165079942359e14,
	3.248660372023916e15,
}

// hllHistogram returns the number of registers holding each value 0..65-p.
// Wrapped states may hold larger 6-bit values, which count as 65-p.
func hllHistogram(p int, state []byte) []int {
	top := uint64(hashBits - p + 1)
	counts := make([]int, top+1)

	for _, r := range hllRegisters.All(state, 1<<p) {
		counts[min(r, top)]++
	}

	return counts
}

func hllSmallRangeCorrectedRawEstimate(p int, state []byte) float64 {
	m := 1 << p
	c0 := 0
	sum := 0.0

	for _, r := range hllRegisters.All(state, m) {
		if r > 0 {
			sum += pow2Neg(int(r))
		} else {
			c0++
		}
	}

	if c0 > 0 {
		sum += float64(float64(m) * sigma(float64(c0)/float64(m)))
	}

	return hllEstimationFactors[p] / sum
}

// hllCorrectedRawEstimate is the improved raw estimator of Ertl (2017),
// which corrects both for empty and for saturated registers.
func hllCorrectedRawEstimate(p int, state []byte) float64 {
	m := float64(uint(1) << p)
	q := hashBits - p
	counts := hllHistogram(p, state)

	sum := m * tau(1-float64(counts[q+1])/m) * pow2Neg(q)

	for k := q; k >= 1; k-- {
		if counts[k] > 0 {
			sum += scalePow2Neg(float64(counts[k]), k)
		}
	}

	sum += float64(m * sigma(float64(counts[0])/m))

	return hllEstimationFactors[p] / sum
}

// hllMaximumLikelihoodEstimate builds the likelihood of the register values.
// A register with value r in [1, 64-p] proves a hash at level r and rules out
// all higher levels, whose probabilities add up to 2^-r. The top value 65-p
// proves a hash at level 64-p only.
func hllMaximumLikelihoodEstimate(p int, state []byte) float64 {
	m := 1 << p
	q := hashBits - p
	counts := hllHistogram(p, state)

	aCounts := make([]int, q+1)
	b := make([]int, q+1)

	aCounts[0] = counts[0]

	for r := 1; r <= q; r++ {
		aCounts[r] = counts[r]
		b[r] = counts[r]
	}

	b[q] += counts[q+1]

	a := sumScaledCounts(aCounts)
	relErr := mlRelativeErrorFraction * HyperLogLogMLRelativeStandardError(p)
	x := SolveMaximumLikelihoodEquation(a, b, relErr)

	return float64(m) * x / (1 + hllMLBias/float64(m))
}
