package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
	"github.com/nerrad567/taskledger/internal/infrastructure/mqtt"
)

// DefaultQueueSize is the number of events buffered for the broker before
// new events are dropped.
const DefaultQueueSize = 256

// Broker is the subset of *mqtt.Client the MQTT publisher needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTPublisher publishes events as JSON to taskledger/events/{entity}/{action}.
//
// Publish only enqueues; a single worker started by Start delivers to the
// broker, so a slow broker never delays the request that produced the
// event. When the queue is full the event is dropped and logged.
//
// Thread Safety:
//   - Publish is safe for concurrent use.
//   - Start and Close must each be called at most once.
type MQTTPublisher struct {
	broker Broker
	qos    byte
	logger *logging.Logger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewMQTTPublisher creates a publisher over broker. Events are never retained.
func NewMQTTPublisher(broker Broker, qos byte, logger *logging.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MQTTPublisher{
		broker: broker,
		qos:    qos,
		logger: logger,
		queue:  make(chan Event, DefaultQueueSize),
		stop:   make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (p *MQTTPublisher) Start() {
	p.wg.Add(1)
	go p.run()
}

// Close stops the worker after delivering whatever is already queued.
func (p *MQTTPublisher) Close() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Publish implements Publisher. It never blocks.
func (p *MQTTPublisher) Publish(_ context.Context, e Event) {
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("event queue full, dropping event", "type", e.Type)
	}
}

func (p *MQTTPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case e := <-p.queue:
			p.deliver(e)
		case <-p.stop:
			for {
				select {
				case e := <-p.queue:
					p.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (p *MQTTPublisher) deliver(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("encoding event failed", "type", e.Type, "error", err)
		return
	}

	topic := mqtt.Topics{}.Event(e.Entity, e.Action)
	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing event failed",
			"topic", topic,
			"type", e.Type,
			"error", err,
		)
	}
}
