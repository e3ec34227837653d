package distinct_test

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
)

func TestComputeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash uint64
		want uint32
	}{
		{name: "zero", hash: 0, want: 38},
		{name: "all ones", hash: ^uint64(0), want: (1<<26 - 1) << 6},
		{name: "top bit only", hash: 1 << 63, want: 1<<31 | 38},
		{name: "first window bit", hash: 1 << 37, want: 0},
		{name: "last window bit", hash: 1, want: 37},
		{name: "index and window", hash: 0x0000_0040_0000_1000, want: 1<<6 | 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token := distinct.ComputeToken(tt.hash)
			assert.Equal(t, tt.want, token)
			assert.True(t, distinct.IsValidToken(token))
		})
	}
}

func TestReconstructHash_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, h := range randomHashes(12, 10_000) {
		token := distinct.ComputeToken(h)
		reconstructed := distinct.ReconstructHash(token)

		assert.Equal(t, h>>38, reconstructed>>38)
		assert.Equal(t, bits.LeadingZeros64(h<<26), bits.LeadingZeros64(reconstructed<<26))
		assert.Equal(t, token, distinct.ComputeToken(reconstructed))
	}

	for nlz := range uint32(39) {
		for _, index := range []uint32{0, 1, 0x2AAAAAA, 1<<26 - 1} {
			token := index<<6 | nlz
			assert.Equal(t, token, distinct.ComputeToken(distinct.ReconstructHash(token)))
		}
	}
}

func TestIsValidToken(t *testing.T) {
	t.Parallel()

	for nlz := range uint32(64) {
		assert.Equal(t, nlz <= 38, distinct.IsValidToken(0xFFFFFFC0|nlz), "nlz %d", nlz)
	}
}
