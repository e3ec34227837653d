package distinct_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
)

func TestCreate_PrecisionBoundaries(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			for _, p := range []int{distinct.MinP, distinct.MinP + 1, 12, distinct.MaxP} {
				s, err := v.create(p)
				require.NoError(t, err)
				assert.Equal(t, p, s.Precision())
				assert.Len(t, s.State(), v.stateSize(p))
			}

			for _, p := range []int{distinct.MinP - 1, distinct.MaxP + 1, -1, 64} {
				_, err := v.create(p)
				require.ErrorIs(t, err, distinct.ErrInvalidPrecision)
			}
		})
	}
}

func TestStateSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 6, distinct.HyperLogLogStateSize(3))
	assert.Equal(t, 3072, distinct.HyperLogLogStateSize(12))
	assert.Equal(t, 3<<24, distinct.HyperLogLogStateSize(26))
	assert.Equal(t, 8, distinct.UltraLogLogStateSize(3))
	assert.Equal(t, 4096, distinct.UltraLogLogStateSize(12))
}

func TestWrap_IllegalLengths(t *testing.T) {
	t.Parallel()

	hllIllegal := []int{0, 1, 3, 4, 5, 7, 8, 9, 10, 18, 36}
	for _, n := range hllIllegal {
		_, err := distinct.WrapHyperLogLog(make([]byte, n))
		require.ErrorIs(t, err, distinct.ErrInvalidStateLength, "length %d", n)
	}

	ullIllegal := []int{0, 1, 4, 7, 9, 12, 100}
	for _, n := range ullIllegal {
		_, err := distinct.WrapUltraLogLog(make([]byte, n))
		require.ErrorIs(t, err, distinct.ErrInvalidStateLength, "length %d", n)
	}

	_, err := distinct.WrapHyperLogLog(nil)
	require.ErrorIs(t, err, distinct.ErrNilArgument)

	_, err = distinct.WrapUltraLogLog(nil)
	require.ErrorIs(t, err, distinct.ErrNilArgument)
}

func TestWrap_DerivesPrecision(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		for p := distinct.MinP; p <= 16; p++ {
			s, err := v.wrap(make([]byte, v.stateSize(p)))
			require.NoError(t, err, "%s p=%d", v.name, p)
			assert.Equal(t, p, s.Precision())
		}
	}
}

func TestWrap_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			s := mustCreate(t, v, 10)
			for _, h := range randomHashes(1, 5000) {
				s.Add(h)
			}

			wrapped, err := v.wrap(append([]byte(nil), s.State()...))
			require.NoError(t, err)

			assert.Equal(t, s.Precision(), wrapped.Precision())
			assert.Equal(t, s.Estimate(), wrapped.Estimate())
			assert.Equal(t, s.StateChangeProbability(), wrapped.StateChangeProbability())

			more := randomHashes(2, 1000)
			for _, h := range more {
				s.Add(h)
				wrapped.Add(h)
			}

			assert.Equal(t, s.State(), wrapped.State())
		})
	}
}

func TestAdd_Idempotent(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			once := mustCreate(t, v, 8)
			twice := mustCreate(t, v, 8)

			for _, h := range randomHashes(3, 2000) {
				once.Add(h)
				twice.Add(h)
				twice.Add(h)
			}

			assert.Equal(t, once.State(), twice.State())
		})
	}
}

func TestAdd_OrderIndependent(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			hashes := randomHashes(4, 3000)
			forward := mustCreate(t, v, 6)

			for _, h := range hashes {
				forward.Add(h)
			}

			rng := rand.New(rand.NewPCG(4, 4))

			for range 5 {
				rng.Shuffle(len(hashes), func(i, j int) { hashes[i], hashes[j] = hashes[j], hashes[i] })

				shuffled := mustCreate(t, v, 6)
				for _, h := range hashes {
					shuffled.Add(h)
				}

				assert.Equal(t, forward.State(), shuffled.State())
			}
		})
	}
}

func TestAddToken_MatchesAdd(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			for _, p := range []int{distinct.MinP, 8, 14, distinct.MaxP} {
				viaHash := mustCreate(t, v, p)
				viaToken := mustCreate(t, v, p)
				rnd := randomHashes(uint64(p), 200)

				for i, r := range rnd {
					// Cover every leading-zero count the token can represent.
					h := updateValue(p, r>>(64-p), i%(64-p+1), r)
					token := distinct.ComputeToken(h)
					require.True(t, distinct.IsValidToken(token))

					viaHash.Add(h)
					viaToken.AddToken(token)
				}

				assert.Equal(t, viaHash.State(), viaToken.State(), "p=%d", p)
			}
		})
	}
}

func TestAddToken_InvalidTokenActsLikeMaximalNLZ(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		invalid := mustCreate(t, v, 10)
		maximal := mustCreate(t, v, 10)

		const index = uint32(0x2A5) << 16 << 6

		invalid.AddToken(index | 63)
		maximal.AddToken(index | 38)

		assert.False(t, distinct.IsValidToken(index|63))
		assert.Equal(t, maximal.State(), invalid.State(), v.name)
	}
}

func TestDownsize_NoOpForLargerPrecision(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		s := mustCreate(t, v, 9)
		for _, h := range randomHashes(5, 1000) {
			s.Add(h)
		}

		for _, p := range []int{9, 10, distinct.MaxP} {
			d, err := v.downsize(s, p)
			require.NoError(t, err)
			assert.Equal(t, s.State(), d.State())
			assert.Equal(t, 9, d.Precision())
		}

		_, err := v.downsize(s, distinct.MinP-1)
		require.ErrorIs(t, err, distinct.ErrInvalidPrecision)
	}
}

func TestDownsize_EqualsDirectInsertion(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			const fine = 12

			hashes := randomHashes(6, 20_000)
			source := mustCreate(t, v, fine)

			for _, h := range hashes {
				source.Add(h)
			}

			for p := distinct.MinP; p < fine; p++ {
				direct := mustCreate(t, v, p)
				for _, h := range hashes {
					direct.Add(h)
				}

				downsized, err := v.downsize(source, p)
				require.NoError(t, err)
				assert.Equal(t, direct.State(), downsized.State(), "p=%d", p)
			}
		})
	}
}

func TestMerge_EqualsInsertionOfUnion(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			for p1 := distinct.MinP; p1 <= 8; p1++ {
				for p2 := p1; p2 <= p1+5; p2++ {
					for _, size := range []int{0, 1, 10, 50, 1000} {
						rnd1 := randomHashes(uint64(100*p1+p2), size)
						rnd2 := randomHashes(uint64(1000*p1+p2), size)
						s1 := mustCreate(t, v, p1)
						s2 := mustCreate(t, v, p2)
						union := mustCreate(t, v, p1)

						for i, r := range rnd1 {
							h := updateValue(p1, r>>(64-p1), i%(64-p1+1), r)
							s1.Add(h)
							union.Add(h)
						}

						for i, r := range rnd2 {
							// Small leading-zero counts hit the extra index bits of the
							// finer sketch, large ones its saturated registers.
							h := updateValue(p2, r>>(64-p2), i%(64-p2+1), r)
							s2.Add(h)
							union.Add(h)
						}

						require.NoError(t, v.merge(s1, s2))
						require.Equal(t, union.State(), s1.State(), "p1=%d p2=%d size=%d", p1, p2, size)
					}
				}
			}
		})
	}
}

func TestMerge_RejectsSmallerPrecision(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		fine := mustCreate(t, v, 10)
		coarse := mustCreate(t, v, 9)

		for _, h := range randomHashes(7, 500) {
			fine.Add(h)
			coarse.Add(h ^ 0x5555)
		}

		before := append([]byte(nil), fine.State()...)

		err := v.merge(fine, coarse)
		require.ErrorIs(t, err, distinct.ErrIncompatiblePrecision)
		assert.Equal(t, before, fine.State())
	}
}

func TestMerge_NilArguments(t *testing.T) {
	t.Parallel()

	hll, err := distinct.NewHyperLogLog(5)
	require.NoError(t, err)
	require.ErrorIs(t, hll.Merge(nil), distinct.ErrNilArgument)

	_, err = distinct.MergeHyperLogLogs(hll, nil)
	require.ErrorIs(t, err, distinct.ErrNilArgument)

	ull, err := distinct.NewUltraLogLog(5)
	require.NoError(t, err)
	require.ErrorIs(t, ull.Merge(nil), distinct.ErrNilArgument)

	_, err = distinct.MergeUltraLogLogs(nil, ull)
	require.ErrorIs(t, err, distinct.ErrNilArgument)
}

func TestMergeStatic_UsesSmallerPrecision(t *testing.T) {
	t.Parallel()

	hashes := randomHashes(8, 4000)

	a, err := distinct.NewUltraLogLog(11)
	require.NoError(t, err)

	b, err := distinct.NewUltraLogLog(7)
	require.NoError(t, err)

	expected, err := distinct.NewUltraLogLog(7)
	require.NoError(t, err)

	for i, h := range hashes {
		if i%2 == 0 {
			a.Add(h)
		} else {
			b.Add(h)
		}

		expected.Add(h)
	}

	merged, err := distinct.MergeUltraLogLogs(a, b)
	require.NoError(t, err)
	assert.Equal(t, expected.State(), merged.State())
	assert.Equal(t, 11, a.Precision(), "inputs must stay untouched")

	ha, err := distinct.NewHyperLogLog(6)
	require.NoError(t, err)

	hb, err := distinct.NewHyperLogLog(9)
	require.NoError(t, err)

	hExpected, err := distinct.NewHyperLogLog(6)
	require.NoError(t, err)

	for i, h := range hashes {
		if i%3 == 0 {
			ha.Add(h)
		} else {
			hb.Add(h)
		}

		hExpected.Add(h)
	}

	hMerged, err := distinct.MergeHyperLogLogs(hb, ha)
	require.NoError(t, err)
	assert.Equal(t, hExpected.State(), hMerged.State())
}

func TestResetAndClone(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		s := mustCreate(t, v, 7)
		for _, h := range randomHashes(9, 300) {
			s.Add(h)
		}

		c := v.clone(s)
		assert.Equal(t, s.State(), c.State())

		s.Reset()
		assert.Equal(t, make([]byte, v.stateSize(7)), s.State())
		assert.NotEqual(t, s.State(), c.State(), "clone must not share state")
		assert.Zero(t, s.Estimate())
		assert.InDelta(t, 1.0, s.StateChangeProbability(), 0)
	}
}

func TestStateChangeProbability(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			for p := distinct.MinP; p <= 14; p++ {
				m := uint64(1) << p
				q := 64 - p

				empty := mustCreate(t, v, p)
				assert.InDelta(t, 1.0, empty.StateChangeProbability(), 0)

				half := mustCreate(t, v, p)
				for idx := range m {
					half.Add(updateValue(p, idx, 0, idx))
				}

				assert.InDelta(t, 0.5, half.StateChangeProbability(), 1e-15, "p=%d", p)

				full := mustCreate(t, v, p)
				for idx := range m {
					for nlz := q - 2; nlz <= q; nlz++ {
						full.Add(updateValue(p, idx, nlz, 0))
					}
				}

				assert.Zero(t, full.StateChangeProbability(), "p=%d", p)
				assert.Equal(t, math.Inf(1), v.mlEstimate(full), "p=%d", p)

				// One register short of full keeps exactly the chance of
				// hitting its missing levels.
				almost := mustCreate(t, v, p)
				for idx := range m {
					for nlz := q - 2; nlz <= q; nlz++ {
						if idx == 0 && nlz == q {
							continue
						}

						almost.Add(updateValue(p, idx, nlz, 0))
					}
				}

				assert.Positive(t, almost.StateChangeProbability())
				assert.Less(t, almost.StateChangeProbability(), math.Ldexp(1, -q))
			}
		})
	}
}

func TestAddWithObserver_ReportsProbabilityDecrement(t *testing.T) {
	t.Parallel()

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			t.Parallel()

			s := mustCreate(t, v, 6)
			observer := &recordingObserver{}
			rnd := randomHashes(10, 5000)

			for i, r := range rnd {
				before := s.StateChangeProbability()
				calls := observer.calls
				total := observer.total

				h := updateValue(6, r>>58, i%59, r)
				s.AddWithObserver(h, observer)

				after := s.StateChangeProbability()
				if observer.calls == calls {
					assert.InDelta(t, before, after, 0)

					continue
				}

				assert.Equal(t, calls+1, observer.calls)
				assert.InDelta(t, before-after, observer.total-total, 1e-12)
			}

			// Adding known elements never notifies.
			calls := observer.calls
			for i, r := range rnd {
				s.AddWithObserver(updateValue(6, r>>58, i%59, r), observer)
				s.AddTokenWithObserver(distinct.ComputeToken(updateValue(6, r>>58, i%59, r)), observer)
			}

			assert.Equal(t, calls, observer.calls)

			// A nil observer is ignored.
			s.AddWithObserver(rnd[0]^1, nil)
		})
	}
}

func TestChainObservers(t *testing.T) {
	t.Parallel()

	first := &recordingObserver{}
	second := &recordingObserver{}
	calls := 0

	chained := distinct.ChainObservers(first, nil, second, distinct.ObserverFunc(func(float64) { calls++ }))
	chained.StateChanged(0.25)
	chained.StateChanged(0.5)

	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 2, second.calls)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 0.75, first.total, 0)
}
