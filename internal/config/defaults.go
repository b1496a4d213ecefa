package config

import "time"

// Default configuration values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultHistoryLimit = 10000

	DefaultSearchTimeout      = 5 * time.Minute
	DefaultSearchMaxResults   = 1000
	DefaultSearchMaxCommits   = 10000
	DefaultSearchContextLines = 3

	DefaultOperationRetention = 15 * time.Minute
	DefaultJanitorInterval    = time.Minute

	DefaultServiceName    = "githound"
	DefaultMetricsEnabled = false
	DefaultMetricsAddr    = ":9090"
)
