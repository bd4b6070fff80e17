package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger that writes to stderr, keeping stdout free for command
// output. When debug is true it uses the development config (human-readable, debug level);
// otherwise the production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
