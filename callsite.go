package cosmosgremlin

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// CallOption configures a single query call.
type CallOption func(*callConfig)

type callConfig struct {
	site string
}

// WithCallSite annotates the call with an explicit origin. It only affects
// logs and traces. Without it the calling function, file and line are
// recorded automatically.
func WithCallSite(site string) CallOption {
	return func(c *callConfig) { c.site = site }
}

// newCallConfig applies opts. skip counts the frames between the caller of
// newCallConfig and the application code that made the query.
func newCallConfig(opts []CallOption, skip int) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.site == "" {
		cfg.site = callerSite(skip + 2)
	}
	return cfg
}

func callerSite(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s (%s:%d)", name, filepath.Base(file), line)
}
