package main

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type stopper interface {
	Stop()
}

// publisherCache keeps one publisher per topic so batching settings on the
// underlying client survive across polls.
type publisherCache struct {
	mu      sync.Mutex
	factory publisherFactory
	byTopic map[string]publisher
}

func newPublisherCache(factory publisherFactory) *publisherCache {
	return &publisherCache{factory: factory, byTopic: map[string]publisher{}}
}

// get returns the cached publisher for topic. Misses are not cached so a topic
// configured later is picked up.
func (c *publisherCache) get(topic string) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byTopic[topic]; ok {
		return p
	}
	p := c.factory(topic)
	if p != nil {
		c.byTopic[topic] = p
	}
	return p
}

// stopAll flushes and stops every cached publisher.
func (c *publisherCache) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, p := range c.byTopic {
		if s, ok := p.(stopper); ok {
			s.Stop()
		}
		delete(c.byTopic, topic)
	}
}

func gcpPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return &gcpPublisher{Publisher: p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return gcpPublishResult{p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
