package config

// Sketch defaults.
const (
	DefaultSketchVariant      = "ultraloglog"
	DefaultSketchPrecision    = 12
	DefaultSketchMemoryBudget = ""
	DefaultSketchEstimator    = ""
	DefaultSketchMartingale   = false
)

// Snapshot defaults.
const (
	DefaultSnapshotDirectory = "."
	DefaultSnapshotCodec     = "binary"
	DefaultSnapshotCompress  = true
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultServiceName  = "distinctcount"
	DefaultOTLPInsecure = false
)
