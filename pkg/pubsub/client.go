// Package pubsub wraps the Pub/Sub v2 client used to fan out shop domain
// events (order lifecycle, account tokens) to downstream consumers.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/logger"
)

var (
	ErrMissingProject = errors.New("pubsub: gcp project id is required")
	ErrUnknownTopic   = errors.New("pubsub: topic does not exist")
)

// Client publishes to the shop topics. Publishers are created lazily per
// topic and flushed on Close.
type Client struct {
	api     *gcppubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient dials Pub/Sub and fails fast when a configured topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, ErrMissingProject
	}

	var opts []option.ClientOption
	if gcp.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}
	api, err := gcppubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: dial: %w", err)
	}

	c := &Client{
		api:        api,
		project:    project,
		topics:     configuredTopics(cfg),
		publishers: map[string]*gcppubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", c.topics), "pubsub client ready")
	}
	return c, nil
}

func configuredTopics(cfg config.PubSubConfig) []string {
	var out []string
	for _, t := range []string{cfg.OrdersTopic, cfg.AccountsTopic} {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Ping checks every configured topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("pubsub: client not initialized")
	}
	if len(c.topics) == 0 {
		return errors.New("pubsub: no topics configured")
	}
	for _, topic := range c.topics {
		req := &pubsubpb.GetTopicRequest{Topic: TopicResourceName(c.project, topic)}
		if _, err := c.api.TopicAdminClient.GetTopic(ctx, req); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
			}
			return fmt.Errorf("pubsub: get topic %s: %w", topic, err)
		}
	}
	return nil
}

// Publish sends one message and waits for the server id.
func (c *Client) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	return pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

func (c *Client) publisher(topic string) (*gcppubsub.Publisher, error) {
	name := TopicResourceName(c.project, topic)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p, nil
	}
	p := c.api.Publisher(name)
	c.publishers[name] = p
	return p, nil
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.api.Close()
}

// TopicResourceName expands a short topic id into its full resource name.
// Full names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
