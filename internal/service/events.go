package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
)

// activity publishes domain events. A failed publish is logged and never
// fails the request that produced it.
type activity struct {
	pub mq.Publisher
	log *logger.Logger
	now func() time.Time
}

func newActivity(pub mq.Publisher, log *logger.Logger) activity {
	if pub == nil {
		pub = mq.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return activity{pub: pub, log: log, now: time.Now}
}

func (a activity) emit(ctx context.Context, ev mq.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = a.now().UTC()
	}
	if err := a.pub.Publish(ctx, ev); err != nil {
		a.log.WarnContext(ctx, "failed to publish activity event",
			zap.String("type", ev.Type),
			zap.Uint("group_id", ev.GroupID),
			zap.Error(err),
		)
	}
}
