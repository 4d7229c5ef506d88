package errors

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Logger adds AppError code, retryability and context to log entries
type Logger struct {
	*logrus.Logger
}

// WrapLogger shares base. A nil base gets a fresh JSON logger.
func WrapLogger(base *logrus.Logger) *Logger {
	if base == nil {
		base = logrus.New()
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Logger{Logger: base}
}

// Log picks the level from the error: errors that map to a 5xx status are
// logged at error level and everything else at warn.
func (l *Logger) Log(err error, message string, fields ...logrus.Fields) {
	if HTTPStatusCode(err) >= http.StatusInternalServerError {
		l.LogError(err, message, fields...)
		return
	}
	l.LogWarn(err, message, fields...)
}

func (l *Logger) LogError(err error, message string, fields ...logrus.Fields) {
	l.entry(err, fields).Error(message)
}

func (l *Logger) LogWarn(err error, message string, fields ...logrus.Fields) {
	l.entry(err, fields).Warn(message)
}

func (l *Logger) entry(err error, fields []logrus.Fields) *logrus.Entry {
	merged := logrus.Fields{}
	if appErr, ok := As(err); ok {
		for k, v := range appErr.Context {
			merged[k] = v
		}
		merged["error_code"] = appErr.Code
		merged["retryable"] = appErr.Retryable
	}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return l.Logger.WithError(err).WithFields(merged)
}
