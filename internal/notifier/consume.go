package notifier

import (
	"context"
	"fmt"
	"runtime/debug"

	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

// Consume pulls reports from q and hands each to handle until the close
// report arrives (nil return) or ctx ends (ctx error). Errors and panics
// from handle are logged and never stop the loop.
func Consume(ctx context.Context, q *queue.Queue[Report], log logx.Logger, handle func(context.Context, Report) error) error {
	for {
		r, err := q.Get(ctx)
		if err != nil {
			return err
		}
		if r.Close {
			log.Info("close received, channel loop stopping")
			return nil
		}
		if err := guard(ctx, r, handle); err != nil {
			log.Error("report handling failed", logx.String("kind", string(r.Kind)), logx.Err(err))
		}
	}
}

func guard(ctx context.Context, r Report, handle func(context.Context, Report) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return handle(ctx, r)
}
