package channel

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Publisher is satisfied by grpc.Broadcaster.
type Publisher interface {
	Broadcast(n *models.ChannelNotification) int
}

// BroadcastSink publishes to nearby subscribers. Having no listeners in range is
// still a successful broadcast.
type BroadcastSink struct {
	pub Publisher
}

func NewBroadcastSink(pub Publisher) *BroadcastSink {
	return &BroadcastSink{pub: pub}
}

func (s *BroadcastSink) Send(ctx context.Context, n models.ChannelNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delivered := s.pub.Broadcast(&n)
	slog.Debug("broadcast published", "id", n.ReportID, "subscribers", delivered, "radius_km", n.RadiusKM)
	return nil
}
