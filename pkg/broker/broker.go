// Package broker publishes engine lifecycle events to an external message
// broker. The implementation is selected by configuration; when none is
// configured the engine uses the no-op broker and stays self-contained.
package broker

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/events"
	"github.com/volgapavel/popov-exem/pkg/util/config"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

const (
	envBrokerType = "BROKER_TYPE"
)

var (
	factories = make(map[Type]func(context.Context, interface{}) (Broker, error))
	configs   = make(map[Type]interface{})
	mutex     = &sync.Mutex{}
)

func register(t Type, f func(context.Context, interface{}) (Broker, error), c interface{}) {
	mutex.Lock()
	factories[t] = f
	configs[t] = c
	mutex.Unlock()
}

// Type is a string designing the implementation of Broker interface
type Type string

// Broker publishes lifecycle events.
type Broker interface {
	// Publish publishes the given event to the given exchange with the
	// given routing key.
	Publish(ctx context.Context, evt events.Event, exchange, routingkey string) error

	// Close closes all connections.
	Close() error
}

// NewFromConfig returns a new instance of Broker based on configuration from
// config file and/or env variables. When no broker type is configured, the
// no-op broker is returned.
func NewFromConfig(ctx context.Context, configKey string) (Broker, error) {
	configTypeKey := configKey + ".type"
	// Get broker type
	var t string
	if typ := config.Get(configTypeKey); typ != nil {
		asString, isString := typ.(string)
		if !isString {
			return nil, errors.Errorf("config entry with key %s is not a string", configTypeKey)
		}
		t = asString
	} else {
		t = os.Getenv(envBrokerType)
	}
	if t == "" {
		return NewNoopBroker(), nil
	}

	typ := Type(strings.ToLower(t))
	v, ok := configs[typ]
	if !ok {
		return nil, errors.Errorf("unknown broker type %s", typ)
	}
	if err := config.Unmarshal(configKey, v); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal broker config")
	}

	return New(ctx, typ, v)
}

// NewFromEnv returns a new instance of Broker based on env variables
func NewFromEnv(ctx context.Context) (Broker, error) {
	//NewFromConfig fallbacks to env when necessary
	return NewFromConfig(ctx, "broker")
}

// New returns a new instance of Broker based on given configuration struct
func New(ctx context.Context, t Type, c interface{}) (Broker, error) {
	f, ok := factories[t]
	if !ok {
		return nil, errors.Errorf("unknown broker type %s", t)
	}

	return f(ctx, c)
}
