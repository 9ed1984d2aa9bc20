package notify

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"tripdesk/internal/app/fanout"
)

// KafkaHandler consumes notification tasks published as CloudEvents.
type KafkaHandler struct {
	Deliverer *Deliverer
}

type taskEnvelope struct {
	ID   string                  `json:"id"`
	Type string                  `json:"type"`
	Data fanout.NotificationTask `json:"data"`
}

func (h KafkaHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env taskEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// Poison messages are acknowledged and skipped.
		h.Deliverer.log().Warn("undecodable notification task", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}
	if env.Data.Reference == "" {
		h.Deliverer.log().Warn("notification task without reference", "id", env.ID, "offset", msg.Offset)
		return nil
	}
	return h.Deliverer.Deliver(ctx, env.Data)
}
