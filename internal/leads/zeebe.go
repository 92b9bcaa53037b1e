package leads

import (
	"context"

	"business-directory/internal/models"
)

// MessagePublisher is satisfied by *camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables interface{}) error
}

// ZeebeSink publishes each lead as a message correlated by business id, which
// starts the notify-business-lead process.
type ZeebeSink struct {
	publisher   MessagePublisher
	messageName string
}

func NewZeebeSink(publisher MessagePublisher, messageName string) *ZeebeSink {
	return &ZeebeSink{publisher: publisher, messageName: messageName}
}

func (z *ZeebeSink) Send(ctx context.Context, lead models.LeadCapture) error {
	return z.publisher.PublishMessage(ctx, z.messageName, lead.BusinessID, lead)
}
