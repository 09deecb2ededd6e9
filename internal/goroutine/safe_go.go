package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
)

// recoverPanic логирует панику горутины вместе со стеком.
func recoverPanic(task string) {
	r := recover()
	if r == nil {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"task":  task,
		"panic": r,
		"stack": string(debug.Stack()),
	}).Error("goroutine: panic recovered")
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic("background")
		fn(ctx)
	}()
}
