// Package http provides an HTTP transport for relay.
package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/golang-jwt/jwt/v5"

	"github.com/relaykit/relay/internal/runtime/metadata"
	"github.com/relaykit/relay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	Register()
}

// Register adds the HTTP transport to the default registry. init does this
// automatically; call it again after swapping transport.DefaultRegistry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP transport. When the config carries a JWT secret,
// inbound requests resolve their user id from the Authorization bearer token.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	serverAddr := cfg.GetHTTPServerAddress()
	publisherURL := cfg.GetHTTPPublisherURL()

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				url := publisherURL + topic
				return http.DefaultMarshalMessageFunc(url, msg)
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	unmarshal := http.UnmarshalMessageFunc(http.DefaultUnmarshalMessageFunc)
	if secret := cfg.GetHTTPJWTSecret(); secret != "" {
		unmarshal = resolveBearerUser([]byte(secret), unmarshal)
	}

	subscriber, err := SubscriberFactory(
		serverAddr,
		http.SubscriberConfig{
			UnmarshalMessageFunc: unmarshal,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	// Start HTTP server in background if subscriber is the right type
	go func() {
		if s, ok := subscriber.(*http.Subscriber); ok {
			if err := s.StartHTTPServer(); err != nil {
				logger.Error("Failed to start HTTP subscriber server", err, nil)
			}
		}
	}()

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}

// resolveBearerUser wraps an unmarshal func so the verified token subject
// becomes the message's user id. The token is the only accepted source of
// identity: a client-supplied user id header is dropped, and a request with
// a malformed or badly signed token is rejected.
func resolveBearerUser(secret []byte, next http.UnmarshalMessageFunc) http.UnmarshalMessageFunc {
	return func(topic string, req *nethttp.Request) (*message.Message, error) {
		msg, err := next(topic, req)
		if err != nil {
			return nil, err
		}
		delete(msg.Metadata, metadata.KeyUserID)

		header := req.Header.Get("Authorization")
		if header == "" {
			return msg, nil
		}

		subject, err := bearerSubject(header, secret)
		if err != nil {
			return nil, err
		}
		msg.Metadata.Set(metadata.KeyUserID, subject)
		return msg, nil
	}
}

func bearerSubject(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("authorization header is not a bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse bearer token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("bearer token has no subject")
	}
	return subject, nil
}
