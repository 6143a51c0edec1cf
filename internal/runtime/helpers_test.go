package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	configpkg "github.com/relaykit/relay/internal/runtime/config"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	transportpkg "github.com/relaykit/relay/transport"
)

// testPublisher records published messages per topic.
type testPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.published == nil {
		p.published = make(map[string][]*message.Message)
	}
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.published))
	for topic := range p.published {
		topics = append(topics, topic)
	}
	return topics
}

func (p *testPublisher) MessagesFor(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.published[topic]))
	copy(clone, p.published[topic])
	return clone
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

type testOutbox struct {
	mu      sync.Mutex
	records []outboxRecord
	err     error
}

type outboxRecord struct {
	name    string
	uuid    string
	payload string
}

func (o *testOutbox) StoreOutgoingMessage(ctx context.Context, name, uuid, payload string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.records = append(o.records, outboxRecord{name: name, uuid: uuid, payload: payload})
	return nil
}

func (o *testOutbox) Records() []outboxRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	clone := make([]outboxRecord, len(o.records))
	copy(clone, o.records)
	return clone
}

// serviceFixture is a Service built through TryNewService on an in-memory
// transport, so tests exercise the real wiring path.
type serviceFixture struct {
	svc *Service
	pub *testPublisher
	sub *testSubscriber
}

func (f *serviceFixture) transport() *transportpkg.Transport {
	return &transportpkg.Transport{Publisher: f.pub, Subscriber: f.sub}
}

func newServiceFixture(t *testing.T, conf *configpkg.Config, deps ServiceDependencies) *serviceFixture {
	t.Helper()
	if conf == nil {
		conf = &configpkg.Config{Transport: "channel"}
	}

	f := &serviceFixture{pub: &testPublisher{}, sub: &testSubscriber{}}
	deps.Transport = f.transport()

	svc, err := TryNewService(context.Background(), conf, loggingpkg.Nop(), deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return newServiceFixture(t, nil, ServiceDependencies{}).svc
}
