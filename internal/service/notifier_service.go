package service

import (
	"context"
	"encoding/json"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/protocol"
	"ai-research-be/pkg/events"
	pkgnats "ai-research-be/pkg/nats"
	"ai-research-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill/message"
)

// NotificationDelivery pushes envelopes to connected clients. The websocket
// hub satisfies this; keeping it an interface lets tests capture deliveries.
type NotificationDelivery interface {
	Notify(sessionID string, env *protocol.Envelope)
	Broadcast(env *protocol.Envelope)
}

// NotifierService turns internal progress and completion events into
// notification envelopes for the session that owns them.
type NotifierService struct {
	subscriber message.Subscriber
	natsSub    *pkgnats.Subscriber
	research   IResearchService
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotifierService(
	subscriber message.Subscriber,
	natsSub *pkgnats.Subscriber,
	research IResearchService,
	delivery NotificationDelivery,
	log logger.ILogger,
) *NotifierService {
	return &NotifierService{
		subscriber: subscriber,
		natsSub:    natsSub,
		research:   research,
		delivery:   delivery,
		logger:     log,
	}
}

// Start wires both event sources. The watermill subscription lives for the
// lifetime of ctx; the NATS one is durable across restarts.
func (n *NotifierService) Start(ctx context.Context) error {
	messages, err := n.subscriber.Subscribe(ctx, workflow.ProgressTopic)
	if err != nil {
		return err
	}
	go n.consumeProgress(messages)

	if n.natsSub != nil {
		err := n.natsSub.Subscribe(
			"research-events."+events.EventTypeResearchCompleted,
			"notifier-research-completed",
			n.handleResearchCompleted,
		)
		if err != nil {
			n.logger.Warn("Notifier", "NATS subscription unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return nil
}

func (n *NotifierService) consumeProgress(messages <-chan *message.Message) {
	for msg := range messages {
		var event workflow.ProgressEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			n.logger.Warn("Notifier", "Undecodable progress event", map[string]interface{}{
				"error": err.Error(),
			})
			msg.Ack()
			continue
		}

		env := protocol.NewNotification("workflow.progress", event)
		n.delivery.Notify(event.SessionID, env)
		msg.Ack()
	}
}

func (n *NotifierService) handleResearchCompleted(ctx context.Context, event events.Event) error {
	data := event.Payload()
	sessionID, _ := data["session_id"].(string)
	if sessionID == "" {
		return nil
	}

	// The event itself only carries a summary; attach the full findings so
	// clients need no follow-up request.
	results, err := n.research.Results(ctx, sessionID)
	if err != nil {
		n.logger.Warn("Notifier", "Research results missing for completion event", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		env := protocol.NewNotification("research.completed", data)
		n.delivery.Notify(sessionID, env)
		return nil
	}

	env := protocol.NewNotification("research.completed", results)
	n.delivery.Notify(sessionID, env)
	return nil
}
