package notifications

import (
	"context"
	"encoding/json"

	"boxoffice/pkg/logger"
)

// Notifier emits buyer-facing domain events. Calls never block on the broker.
type Notifier interface {
	OrderPaid(ctx context.Context, n *Notification)
	RejectionNotice(ctx context.Context, n *Notification)
	OrderExpired(ctx context.Context, n *Notification)
}

// Auditor records administrative and anomalous actions.
type Auditor interface {
	Record(ctx context.Context, entry *AuditEntry)
}

type Topics struct {
	Notifications string
	Audit         string
}

// Service implements Notifier and Auditor on top of a Dispatcher.
type Service struct {
	dispatcher *Dispatcher
	topics     Topics
	logger     *logger.Logger
}

func NewService(dispatcher *Dispatcher, topics Topics) *Service {
	return &Service{dispatcher: dispatcher, topics: topics, logger: logger.GetDefault()}
}

func (s *Service) OrderPaid(ctx context.Context, n *Notification) {
	n.Purpose = PurposeOrderPaid
	s.emit(ctx, n)
}

func (s *Service) RejectionNotice(ctx context.Context, n *Notification) {
	n.Purpose = PurposeRejectionNotice
	s.emit(ctx, n)
}

func (s *Service) OrderExpired(ctx context.Context, n *Notification) {
	n.Purpose = PurposeOrderExpired
	s.emit(ctx, n)
}

func (s *Service) Record(ctx context.Context, entry *AuditEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to encode audit entry", err, map[string]interface{}{"action": entry.Action})
		return
	}
	s.dispatcher.Enqueue(Message{
		Topic:   s.topics.Audit,
		Key:     entry.EntityID,
		Payload: payload,
		Headers: map[string]string{"action": entry.Action, "actor": entry.Actor},
	})
}

func (s *Service) emit(ctx context.Context, n *Notification) {
	payload, err := n.ToJSON()
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to encode notification", err, map[string]interface{}{"order_id": n.OrderID.String()})
		return
	}
	s.dispatcher.Enqueue(Message{
		Topic:   s.topics.Notifications,
		Key:     n.PartitionKey(),
		Payload: payload,
		Headers: map[string]string{"purpose": string(n.Purpose), "order_number": n.OrderNumber},
	})
}
