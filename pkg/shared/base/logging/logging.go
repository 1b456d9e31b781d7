// 指示: miu200521358
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ILogger はアプリ共通のログ出力契約を表す。
type ILogger interface {
	// Debug はデバッグログを出力する。
	Debug(format string, params ...any)
	// Info は情報ログを出力する。
	Info(format string, params ...any)
	// Warn は警告ログを出力する。
	Warn(format string, params ...any)
	// Error はエラーログを出力する。
	Error(format string, params ...any)
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   ILogger = NewConsoleLogger(zapcore.InfoLevel)
)

// DefaultLogger は既定ロガーを返す。
func DefaultLogger() ILogger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger は既定ロガーを差し替える。
func SetDefaultLogger(logger ILogger) {
	if logger == nil {
		return
	}
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// zapConsoleLogger はzapを用いたコンソールロガーを表す。
type zapConsoleLogger struct {
	sugar *zap.SugaredLogger
}

// NewConsoleLogger は標準エラーへ出力するコンソールロガーを生成する。
func NewConsoleLogger(level zapcore.Level) ILogger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.DisableStacktrace = true
	config.DisableCaller = true
	logger, err := config.Build()
	if err != nil {
		return &zapConsoleLogger{sugar: zap.NewNop().Sugar()}
	}
	return &zapConsoleLogger{sugar: logger.Sugar()}
}

// Debug はデバッグログを出力する。
func (l *zapConsoleLogger) Debug(format string, params ...any) {
	l.sugar.Debugf(format, params...)
}

// Info は情報ログを出力する。
func (l *zapConsoleLogger) Info(format string, params ...any) {
	l.sugar.Infof(format, params...)
}

// Warn は警告ログを出力する。
func (l *zapConsoleLogger) Warn(format string, params ...any) {
	l.sugar.Warnf(format, params...)
}

// Error はエラーログを出力する。
func (l *zapConsoleLogger) Error(format string, params ...any) {
	l.sugar.Errorf(format, params...)
}
