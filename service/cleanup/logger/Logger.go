package logger

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

func getRunPrefix(ctx context.Context) string {
	taskName := ctx.Value("taskName")
	runId := ctx.Value("runId")

	if taskName != nil && runId != nil {
		return fmt.Sprintf("[%s] [id=%s] ", taskName, runId)
	}
	return ""
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	log.Debug(getRunPrefix(ctx) + fmt.Sprintf(format, args...))
}

func Debug(ctx context.Context, args ...interface{}) {
	log.Debug(getRunPrefix(ctx) + fmt.Sprint(args...))
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	log.Info(getRunPrefix(ctx) + fmt.Sprintf(format, args...))
}

func Info(ctx context.Context, args ...interface{}) {
	log.Info(getRunPrefix(ctx) + fmt.Sprint(args...))
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	log.Warn(getRunPrefix(ctx) + fmt.Sprintf(format, args...))
}

func Warn(ctx context.Context, args ...interface{}) {
	log.Warn(getRunPrefix(ctx) + fmt.Sprint(args...))
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	log.Error(getRunPrefix(ctx) + fmt.Sprintf(format, args...))
}

func Error(ctx context.Context, args ...interface{}) {
	log.Error(getRunPrefix(ctx) + fmt.Sprint(args...))
}

func Tracef(ctx context.Context, format string, args ...interface{}) {
	log.Trace(getRunPrefix(ctx) + fmt.Sprintf(format, args...))
}

func Trace(ctx context.Context, args ...interface{}) {
	log.Trace(getRunPrefix(ctx) + fmt.Sprint(args...))
}
