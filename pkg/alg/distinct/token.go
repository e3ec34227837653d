package distinct

import "math/bits"

const (
	// tokenIndexBits is the number of leading hash bits kept in a token.
	tokenIndexBits = 26

	// tokenNLZBits is the width of the leading-zero field of a token.
	tokenNLZBits = 6

	// tokenNLZMask extracts the leading-zero field of a token.
	tokenNLZMask = 1<<tokenNLZBits - 1

	// tokenWindowBits is the number of hash bits below the index whose
	// leading zeros are counted.
	tokenWindowBits = hashBits - tokenIndexBits

	// tokenWindowMask has the lowest tokenWindowBits bits set.
	tokenWindowMask = 1<<tokenWindowBits - 1

	// maxTokenNLZ is the largest leading-zero count of a valid token.
	maxTokenNLZ = tokenWindowBits
)

// ComputeToken compresses a 64-bit hash into a 32-bit token.
//
// The token keeps the 26 most significant hash bits and the number of leading
// zeros among the remaining 38 bits. Adding the token to a sketch of any
// supported precision has the same effect as adding the hash itself.
func ComputeToken(hash uint64) uint32 {
	index := uint32(hash>>tokenWindowBits) << tokenNLZBits
	nlz := uint32(bits.LeadingZeros64(^(^hash << tokenIndexBits)))

	return index | nlz
}

// ReconstructHash returns a hash value that updates every sketch exactly as
// the hash the token was computed from. Tokens with a leading-zero field
// above 38 are treated like 38.
func ReconstructHash(token uint32) uint64 {
	index := uint64(token&^tokenNLZMask) << (hashBits - 32)
	window := uint64(tokenWindowMask) >> (token & tokenNLZMask)

	return index | window
}

// IsValidToken reports whether token could have been produced by ComputeToken.
func IsValidToken(token uint32) bool {
	return token&tokenNLZMask <= maxTokenNLZ
}
