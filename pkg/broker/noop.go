package broker

import (
	"github.com/volgapavel/popov-exem/pkg/events"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// NoopType Broker type discarding every event
const NoopType Type = "noop"

func init() {
	f := func(ctx context.Context, c interface{}) (Broker, error) {
		return NewNoopBroker(), nil
	}
	register(NoopType, f, &struct{}{})
}

// NewNoopBroker returns a Broker discarding every event. It is used when no
// broker is configured.
func NewNoopBroker() Broker {
	return noop{}
}

type noop struct{}

func (noop) Publish(ctx context.Context, evt events.Event, exchange, routingkey string) error {
	return nil
}

func (noop) Close() error {
	return nil
}
