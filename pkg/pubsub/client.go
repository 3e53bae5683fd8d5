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

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client wraps the Pub/Sub v2 client with the project's subscription and
// topic names resolved.
type Client struct {
	client       *pubsub.Client
	projectID    string
	subscription string
	pricesTopic  string
	maxInFlight  int
}

// NewClient connects to Pub/Sub. When a price events subscription is
// configured it must already exist; publish-only processes leave it empty.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:       psClient,
		projectID:    projectID,
		subscription: qualify(projectID, kindSubscription, cfg.PriceEventsSubscription),
		pricesTopic:  qualify(projectID, kindTopic, cfg.ListingPricesTopic),
		maxInFlight:  cfg.MaxOutstandingMessages,
	}
	if err := c.checkSubscription(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":   projectID,
			"subscription": shortName(c.subscription),
			"prices_topic": shortName(c.pricesTopic),
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) checkSubscription(ctx context.Context) error {
	if c.subscription == "" {
		return nil
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
	return describeLookup(kindSubscription, c.subscription, err)
}

// EnsureTopics fails on the first topic that does not exist.
func (c *Client) EnsureTopics(ctx context.Context, names ...string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, name := range names {
		full := qualify(c.projectID, kindTopic, name)
		if full == "" {
			return fmt.Errorf("topic %q cannot be resolved", name)
		}
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		if err := describeLookup(kindTopic, full, err); err != nil {
			return err
		}
	}
	return nil
}

func describeLookup(kind resourceKind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(string(kind), "s"), shortName(name))
	default:
		return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(string(kind), "s"), shortName(name), err)
	}
}

// PriceEventsSubscription returns the subscriber for upstream price change
// events, or nil when none is configured.
func (c *Client) PriceEventsSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil || c.subscription == "" {
		return nil
	}
	sub := c.client.Subscriber(c.subscription)
	if c.maxInFlight > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.maxInFlight
	}
	return sub
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := qualify(c.projectID, kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// ListingPricesPublisher returns the publisher for listing price notifications.
func (c *Client) ListingPricesPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.pricesTopic)
}

// Ping re-checks the configured subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkSubscription(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
