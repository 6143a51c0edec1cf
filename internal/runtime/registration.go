package runtime

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/relay/internal/runtime/component"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	metadatapkg "github.com/relaykit/relay/internal/runtime/metadata"
)

// RouteInfo is the debug view of one transport route.
type RouteInfo struct {
	Name         string             `json:"name"`
	Component    component.Identity `json:"component"`
	ConsumeTopic string             `json:"consume_topic"`
	PublishTopic string             `json:"publish_topic,omitempty"`
}

// EventRouteRegistration binds a consume topic to a component's dispatcher.
// Messages arriving on ConsumeTopic are rebuilt into envelopes and dispatched
// through the component's interceptor chain; handler responses go out on
// PublishTopic.
type EventRouteRegistration struct {
	Name         string
	Component    component.Identity
	ConsumeTopic string
	// PublishTopic receives handler responses. Empty falls back to the
	// configured reply topic; when both are empty responses are discarded.
	PublishTopic string
	// Subscriber and Publisher override the service transport per route.
	Subscriber message.Subscriber
	Publisher  message.Publisher
}

// RegisterEventRoute attaches a dispatching route to the service router.
func RegisterEventRoute(svc *Service, cfg EventRouteRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if !cfg.Component.Valid() {
		return &errspkg.ComponentIdentityMissingError{Context: "event route registration"}
	}
	if cfg.ConsumeTopic == "" {
		return errspkg.ErrTopicRequired
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%s/%s", cfg.Component, cfg.ConsumeTopic)
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = svc.subscriber
	}
	if cfg.Publisher == nil {
		cfg.Publisher = svc.publisher
	}
	if cfg.PublishTopic == "" {
		cfg.PublishTopic = svc.Conf.ReplyTopic
	}

	dispatcher, err := svc.cache.DispatcherFor(cfg.Component)
	if err != nil {
		return err
	}

	handler := svc.dispatchingHandler(dispatcher, cfg.PublishTopic)
	if cfg.PublishTopic == "" {
		svc.router.AddNoPublisherHandler(
			cfg.Name,
			cfg.ConsumeTopic,
			cfg.Subscriber,
			func(msg *message.Message) error {
				_, err := handler(msg)
				return err
			},
		)
	} else {
		svc.router.AddHandler(
			cfg.Name,
			cfg.ConsumeTopic,
			cfg.Subscriber,
			cfg.PublishTopic,
			cfg.Publisher,
			handler,
		)
	}

	if stats := dispatcher.Stats(); stats != nil {
		stats.SetDependencyStatus(dependencyName("subscriber", cfg.ConsumeTopic), DependencyStatusUnknown, "")
		if cfg.PublishTopic != "" {
			stats.SetDependencyStatus(dependencyName("publisher", cfg.PublishTopic), DependencyStatusUnknown, "")
		}
	}

	svc.routesMu.Lock()
	svc.routes = append(svc.routes, &RouteInfo{
		Name:         cfg.Name,
		Component:    cfg.Component,
		ConsumeTopic: cfg.ConsumeTopic,
		PublishTopic: cfg.PublishTopic,
	})
	svc.routesMu.Unlock()

	return nil
}

// dispatchingHandler adapts a dispatcher to the Watermill handler contract.
// Undecodable messages fail as unprocessable so the poison queue picks them
// up; dispatch errors nack for redelivery; dropped envelopes ack silently.
func (s *Service) dispatchingHandler(dispatcher *Dispatcher, publishTopic string) message.HandlerFunc {
	stats := dispatcher.Stats()
	return func(msg *message.Message) ([]*message.Message, error) {
		if stats != nil {
			stats.RecordBacklog(msg)
		}

		env, err := metadatapkg.ToEnvelope(msg.Metadata, msg.Payload)
		if err != nil {
			return nil, &UnprocessableEventError{
				eventMessage: string(msg.Payload),
				err:          err,
			}
		}

		response, err := dispatcher.Dispatch(msg.Context(), env)
		if err != nil {
			return nil, err
		}
		if response == nil {
			return nil, nil
		}
		if publishTopic == "" {
			s.Logger.Debug("Discarding response without reply topic", loggingpkg.LogFields{
				"name":        response.Name(),
				"envelope_id": response.ID(),
			})
			return nil, nil
		}

		out, err := NewMessageFromEnvelope(response, nil)
		if err != nil {
			return nil, err
		}
		out.SetContext(msg.Context())
		return []*message.Message{out}, nil
	}
}

// Routes lists the registered transport routes.
func (s *Service) Routes() []RouteInfo {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()

	out := make([]RouteInfo, 0, len(s.routes))
	for _, route := range s.routes {
		out = append(out, *route)
	}
	return out
}

// MessageHandlerRegistration wires a raw Watermill handler without the
// envelope bridge, for consumers that need the full message surface.
type MessageHandlerRegistration struct {
	Name         string
	ConsumeTopic string
	PublishTopic string
	Handler      message.HandlerFunc
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if cfg.ConsumeTopic == "" {
		return errspkg.ErrTopicRequired
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = svc.subscriber
	}
	if cfg.Publisher == nil {
		cfg.Publisher = svc.publisher
	}

	if cfg.PublishTopic == "" {
		handler := cfg.Handler
		svc.router.AddNoPublisherHandler(
			cfg.Name,
			cfg.ConsumeTopic,
			cfg.Subscriber,
			func(msg *message.Message) error {
				_, err := handler(msg)
				return err
			},
		)
		return nil
	}

	svc.router.AddHandler(
		cfg.Name,
		cfg.ConsumeTopic,
		cfg.Subscriber,
		cfg.PublishTopic,
		cfg.Publisher,
		cfg.Handler,
	)
	return nil
}
