package distinct

// Internals exposed to the external test package.
var (
	Pack                 = pack
	Unpack               = unpack
	Sigma                = sigma
	Tau                  = tau
	Xi                   = xi
	ULLCalculateZ        = ullCalculateZ
	HLLEstimationFactors = hllEstimationFactors
	ULLRegisterContribs  = ullRegisterContributions
	ULLEta               = ullEta
	HLLVarianceFactor    = hllVarianceFactor
	ULLMLBias            = ullMLBias
	HLLMLBias            = hllMLBias
	ULLTau               = ullTau
	ULLSaturatedRegister = ullSaturatedRegister
)
