package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client wraps the Pub/Sub v2 client used to fan out journal notifications.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient creates a Pub/Sub v2 client and verifies the journal subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	if name := strings.TrimSpace(cfg.JournalSubscription); name != "" {
		if err := c.ensureSubscriptionExists(ctx, name); err != nil {
			_ = psClient.Close()
			return nil, err
		}
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return c, nil
}

func (c *Client) ensureSubscriptionExists(ctx context.Context, name string) error {
	fullName := c.subscriptionResourceName(name)
	_, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription %q does not exist", name)
		}
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

// JournalPublisher returns the publisher for the journal notification topic.
func (c *Client) JournalPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(c.topicResourceName(c.cfg.JournalTopic))
}

// JournalSubscription returns the subscriber the reconciliation consumer uses.
func (c *Client) JournalSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Subscriber(c.subscriptionResourceName(c.cfg.JournalSubscription))
}

// Ping verifies the journal topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: c.topicResourceName(c.cfg.JournalTopic),
	})
	return err
}

// Close releases the underlying gRPC connections.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		return name
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, name)
}

func (c *Client) subscriptionResourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		return name
	}
	return fmt.Sprintf("projects/%s/subscriptions/%s", c.projectID, name)
}
