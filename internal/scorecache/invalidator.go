package scorecache

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/events"
	"github.com/yourorg/poi-engine/internal/logger"
)

// Invalidator drops cached payloads as analysis events arrive.
type Invalidator struct {
	Cache  *Cache
	Pub    events.Publisher
	Logger *zap.Logger
}

func (i *Invalidator) Run(ctx context.Context) {
	log := logger.OrNop(i.Logger)
	analyzed := i.Pub.SubscribePropertyAnalyzed()
	synced := i.Pub.SubscribePoisSynced()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-analyzed:
			if err := i.Cache.Invalidate(ctx, evt.PropertyID); err != nil {
				log.Warn("score cache invalidate", zap.String("property_id", evt.PropertyID), zap.Error(err))
			}
		case evt := <-synced:
			log.Info("pois synced",
				zap.String("job_id", evt.JobID),
				zap.String("status", string(evt.Status)),
				zap.Int("created", evt.Counts.Created),
				zap.Int("updated", evt.Counts.Updated),
			)
		}
	}
}
