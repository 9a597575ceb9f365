// Package logger 进程级 zap 日志封装
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Init 根据级别与格式（json/console）构建全局 logger
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

// Set 替换全局 logger，主要用于测试
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// L 返回全局 logger
func L() *zap.Logger { return global.Load() }

// With 返回带字段的子 logger
func With(fields ...zap.Field) *zap.Logger { return global.Load().With(fields...) }

func Debug(msg string, fields ...zap.Field) { global.Load().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { global.Load().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { global.Load().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { global.Load().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { global.Load().Fatal(msg, fields...) }

// Sync 刷新缓冲日志
func Sync() error { return global.Load().Sync() }
