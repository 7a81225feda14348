package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

var log *zap.Logger

var (
	serviceName = "trade_agent"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init строит глобальный zap-логгер. Вызывается один раз из main.
func Init() {
	var (
		l   *zap.Logger
		err error
	)
	if strings.ToLower(os.Getenv("AGENT_ENV")) == "dev" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	log = l
	zap.ReplaceGlobals(l)
}

func get() *zap.Logger {
	if log == nil {
		Init()
	}
	return log
}

func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Info(msg)
}

func Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Error(msg)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
