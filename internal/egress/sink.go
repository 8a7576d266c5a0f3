// Package egress provides the pluggable publisher the worker stage's
// output queue drains into. The matching core never imports this
// package — it only produces OutputEnvelope values; what happens to them
// downstream (a real multicast socket, this demonstration NATS
// publisher, or a test spy) is an external collaborator's choice.
package egress

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tembolo1284/matching-engine-c-sub001/internal/matching"
)

// Sink is the boundary the worker's output queue drains into.
type Sink interface {
	Publish(ctx context.Context, env matching.OutputEnvelope) error
	Close() error
}

// NATSSink is a demonstration "multicast publisher" backed by NATS via
// watermill. It is illustrative wiring for local runs, not a claim that
// production market-data fan-out should use NATS in place of real UDP
// multicast — that transport choice is outside this package's scope.
type NATSSink struct {
	publisher message.Publisher
	subject   string
	breaker   *gobreaker.CircuitBreaker
	log       *zap.Logger
}

// NewNATSSink connects to natsURL and wraps publishing in a circuit
// breaker so a broker outage fails fast and logs instead of blocking the
// egress stage or wedging on a dead NATS connection.
func NewNATSSink(natsURL, subject string, log *zap.Logger) (*NATSSink, error) {
	if log == nil {
		log = zap.NewNop()
	}

	watermillLogger := watermill.NewStdLogger(false, false)
	pub, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       natsURL,
			Marshaler: wmnats.GobMarshaler{},
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("egress: connecting NATS publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "egress-nats-publish",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &NATSSink{publisher: pub, subject: subject, breaker: breaker, log: log}, nil
}

// Publish serializes env to its textual envelope shape and publishes it
// through the circuit breaker. A tripped breaker returns an error
// immediately instead of attempting the network call.
func (s *NATSSink) Publish(ctx context.Context, env matching.OutputEnvelope) error {
	body := []byte(env.Payload.Text())
	msg := message.NewMessage(env.CorrelationID, body)
	msg.Metadata.Set("client_id", fmt.Sprintf("%d", env.ClientID))
	msg.Metadata.Set("seq", fmt.Sprintf("%d", env.Seq))

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.publisher.Publish(s.subject, msg)
	})
	if err != nil {
		s.log.Warn("egress publish failed", zap.Error(err), zap.String("subject", s.subject))
	}
	return err
}

func (s *NATSSink) Close() error {
	return s.publisher.Close()
}
