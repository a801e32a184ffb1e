package logger

import "go.uber.org/zap"

// New builds the process logger: console output at debug level in
// development, JSON at info level otherwise.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
