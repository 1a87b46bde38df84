package events

import (
	"context"
	"time"

	"github.com/yourorg/poi-engine/internal/poi"
)

// PropertyAnalyzed is emitted after distances, scores and sea view were rewritten.
type PropertyAnalyzed struct {
	PropertyID    string
	DistanceCount int
	Scores        poi.Scores
	At            time.Time
}

// PoisSynced is emitted when a sync job reaches a terminal status.
type PoisSynced struct {
	JobID  string
	Status poi.JobStatus
	Counts poi.SyncCounts
	At     time.Time
}

type Publisher interface {
	PublishPropertyAnalyzed(ctx context.Context, evt PropertyAnalyzed)
	SubscribePropertyAnalyzed() <-chan PropertyAnalyzed
	PublishPoisSynced(ctx context.Context, evt PoisSynced)
	SubscribePoisSynced() <-chan PoisSynced
}

type inMemory struct {
	analyzed chan PropertyAnalyzed
	synced   chan PoisSynced
}

// NewInMemory returns a buffered publisher. Events are dropped when nobody keeps up.
func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{
		analyzed: make(chan PropertyAnalyzed, buffer),
		synced:   make(chan PoisSynced, buffer),
	}
}

func (m *inMemory) PublishPropertyAnalyzed(_ context.Context, evt PropertyAnalyzed) {
	select {
	case m.analyzed <- evt:
	default:
	}
}

func (m *inMemory) SubscribePropertyAnalyzed() <-chan PropertyAnalyzed { return m.analyzed }

func (m *inMemory) PublishPoisSynced(_ context.Context, evt PoisSynced) {
	select {
	case m.synced <- evt:
	default:
	}
}

func (m *inMemory) SubscribePoisSynced() <-chan PoisSynced { return m.synced }

// Nop discards everything.
type Nop struct{}

func (Nop) PublishPropertyAnalyzed(context.Context, PropertyAnalyzed) {}
func (Nop) SubscribePropertyAnalyzed() <-chan PropertyAnalyzed        { return nil }
func (Nop) PublishPoisSynced(context.Context, PoisSynced)             {}
func (Nop) SubscribePoisSynced() <-chan PoisSynced                    { return nil }
