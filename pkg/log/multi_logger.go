package log

import "sync"

// MultiLogger fans events out to several loggers.
// Safe for concurrent use; loggers may be added at any time.
type MultiLogger struct {
	mu      sync.RWMutex
	loggers []Logger
}

// NewMultiLogger creates a logger that forwards to all given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Add registers another logger.
func (m *MultiLogger) Add(l Logger) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggers = append(m.loggers, l)
}

// Log forwards the event to every registered logger.
func (m *MultiLogger) Log(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
