package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

const requestIDKey ctxKey = "req_id"

// WithRequestID tags a context for correlation in op timing logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// Time logs an operation's duration on return, including the error when the
// operation failed. Use with a named error return:
//
//	defer obs.Time(ctx, "fleet.Claim")(&err)
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(requestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s op=%s dur=%dms err=%v", reqID, op, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("req_id=%s op=%s dur=%dms", reqID, op, dur.Milliseconds())
	}
}
