package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/meridianfin/ledgermirror/pkg/enums"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/outbox"
	"github.com/meridianfin/ledgermirror/pkg/outbox/idempotency"
)

const journalRecheckConsumer = "journal-recheck"

// Consumer watches journal posting events and re-checks pending reconciliation
// entries as soon as the matching entry lands, instead of waiting for the
// retry schedule.
type Consumer struct {
	service      Service
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a journal recheck consumer.
func NewConsumer(service Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("journal subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventJournalEntryPosted) {
		c.logg.Info(logCtx, "skipping non-posting event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, journalRecheckConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload outbox.JournalEntryPostedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, journalRecheckConsumer, eventID)
		return processResult{nack: true}
	}

	if payload.ExternalReference == nil || *payload.ExternalReference == "" {
		// Sync and manual entries without a rail reference never reconcile.
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "external_reference", *payload.ExternalReference)
	if _, err := c.service.Recheck(ctx, *payload.ExternalReference); err != nil {
		c.logg.Error(logCtx, "recheck failed", err)
		_ = c.idempotency.Delete(ctx, journalRecheckConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "reconciliation rechecked")
	return processResult{ack: true}
}
