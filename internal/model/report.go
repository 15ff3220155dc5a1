package model

// Report is the per-tick record handed to printers, plotters and sinks.
type Report struct {
	Timestamp int64          `json:"timestamp"`
	Point     BenchmarkPoint `json:"point"`
	Flags     FlagSet        `json:"flags"`
}
