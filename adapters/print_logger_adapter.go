package adapters

import (
	"log"
)

// PrintLoggerAdapter implements LoggerAdapter using standard log package
type PrintLoggerAdapter struct {
	level  LogLevel
	logger *log.Logger
}

// NewPrintLoggerAdapter creates a new print logger with the specified level
func NewPrintLoggerAdapter(level LogLevel) *PrintLoggerAdapter {
	return &PrintLoggerAdapter{level: level, logger: log.Default()}
}

// WithLogger redirects output to l.
func (p *PrintLoggerAdapter) WithLogger(l *log.Logger) *PrintLoggerAdapter {
	p.logger = l
	return p
}

func (p *PrintLoggerAdapter) shouldLog(level LogLevel) bool {
	return level != LogLevelNone && p.level.enabled(level)
}

func (p *PrintLoggerAdapter) Debug(message string, args ...any) {
	if p.shouldLog(LogLevelDebug) {
		p.logger.Printf("[DEBUG] [critwatch] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Info(message string, args ...any) {
	if p.shouldLog(LogLevelInfo) {
		p.logger.Printf("[INFO] [critwatch] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Warn(message string, args ...any) {
	if p.shouldLog(LogLevelWarn) {
		p.logger.Printf("[WARN] [critwatch] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Error(message string, args ...any) {
	if p.shouldLog(LogLevelError) {
		p.logger.Printf("[ERROR] [critwatch] "+message, args...)
	}
}
