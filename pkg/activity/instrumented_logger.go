package activity

import "context"

// InstrumentedLogger wraps a Logger and reports the action of every
// successfully written record to a callback, typically a metrics counter.
type InstrumentedLogger struct {
	inner    Logger
	onRecord func(action Action)
}

// NewInstrumentedLogger wraps inner with a per-record callback.
func NewInstrumentedLogger(inner Logger, onRecord func(action Action)) *InstrumentedLogger {
	return &InstrumentedLogger{inner: inner, onRecord: onRecord}
}

// Record implements Logger.
func (l *InstrumentedLogger) Record(ctx context.Context, record *Record) error {
	if err := l.inner.Record(ctx, record); err != nil {
		return err
	}
	if l.onRecord != nil {
		l.onRecord(record.Action)
	}
	return nil
}

// List implements Logger.
func (l *InstrumentedLogger) List(ctx context.Context, shopID int64, filter Filter) ([]*Record, error) {
	return l.inner.List(ctx, shopID, filter)
}
