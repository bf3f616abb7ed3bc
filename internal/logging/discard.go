package logging

// DiscardLogger is a no-op logger, useful for benchmarks and tests that
// don't want log noise.
type DiscardLogger struct{}

// Discard is the singleton no-op logger.
var Discard Logger = &DiscardLogger{}

func (l *DiscardLogger) Errorf(format string, args ...any) {}
func (l *DiscardLogger) Warnf(format string, args ...any)  {}
func (l *DiscardLogger) Infof(format string, args ...any)  {}
func (l *DiscardLogger) Debugf(format string, args ...any) {}
func (l *DiscardLogger) Fatalf(format string, args ...any) {}
