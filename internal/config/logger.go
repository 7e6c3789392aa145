package config

import (
	"strings"

	"go.uber.org/zap"
)

// Logger writes one structured line per bot action.
type Logger struct {
	zl *zap.Logger
}

// NewLogger builds a JSON production logger, or a console logger when mode is "dev".
func NewLogger(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{zl: zl}, nil
}

func NewNopLogger() *Logger {
	return &Logger{zl: zap.NewNop()}
}

func (l *Logger) Info(action string, entity string, entityID string, userID int64, status string) {
	l.zl.Info(action,
		zap.String("entity", entity),
		zap.String("entity_id", entityID),
		zap.Int64("user_id", userID),
		zap.String("status", status),
	)
}

func (l *Logger) Error(err error, action string, entity string, entityID string, userID int64) {
	l.zl.Error(action,
		zap.String("entity", entity),
		zap.String("entity_id", entityID),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
}

func (l *Logger) Sync() {
	_ = l.zl.Sync()
}
