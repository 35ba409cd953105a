// Package events publishes completion events to Kafka.
package events

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/verte-zerg/osutrack/internal/model"
)

// DefaultTopic receives all tracker events.
const DefaultTopic = "osu-completions"

const queueSize = 64

// EventType is the kind of a published event.
type EventType string

const (
	EventCompletion EventType = "completion"
	EventBaseline   EventType = "baseline"
)

// Event is the envelope written to the topic.
type Event struct {
	Type      EventType `json:"type"`
	PlayerID  string    `json:"playerId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// CompletionData describes a newly counted map.
type CompletionData struct {
	BeatmapID int    `json:"beatmapId"`
	SessionID string `json:"sessionId"`
	Displayed int    `json:"displayed"`
	Delta     int    `json:"delta"`
}

// BaselineData describes an installed baseline.
type BaselineData struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Options configures a Producer.
type Options struct {
	Brokers  []string
	Topic    string
	PlayerID string
	Logger   *log.Logger
}

// Producer publishes events from a background goroutine. A disabled Producer
// accepts and drops everything.
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
	topic    string
	playerID string
	logger   *log.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

// NewProducer connects to the brokers. With no brokers, or when they cannot be
// reached, the returned Producer is disabled.
func NewProducer(opts Options) *Producer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	brokers := make([]string, 0, len(opts.Brokers))
	for _, b := range opts.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &Producer{logger: logger}
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		logger.Printf("events: kafka producer not available: %v (events disabled)", err)
		return &Producer{logger: logger}
	}
	logger.Printf("events: kafka producer connected to %s", strings.Join(brokers, ","))
	return newWithProducer(producer, opts.Topic, opts.PlayerID, logger)
}

func newWithProducer(producer sarama.SyncProducer, topic, playerID string, logger *log.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Producer{
		producer: producer,
		enabled:  true,
		topic:    topic,
		playerID: playerID,
		logger:   logger,
		queue:    make(chan Event, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// EmitCompletion publishes a counted completion.
func (p *Producer) EmitCompletion(rec model.RunRecord, progress model.Progress) {
	p.enqueue(Event{
		Type:      EventCompletion,
		Timestamp: rec.FinishedAt,
		Data: CompletionData{
			BeatmapID: rec.BeatmapID,
			SessionID: rec.SessionID,
			Displayed: progress.Completed,
			Delta:     progress.Delta,
		},
	})
}

// EmitBaseline publishes a refreshed baseline.
func (p *Producer) EmitBaseline(b model.Baseline) {
	p.enqueue(Event{
		Type:      EventBaseline,
		Timestamp: time.Now(),
		Data: BaselineData{
			Completed:  b.Completed,
			Total:      b.Total,
			Percentage: b.Percentage,
		},
	})
}

// enqueue never blocks the caller; events are dropped when the queue is full.
func (p *Producer) enqueue(event Event) {
	if !p.enabled {
		return
	}
	event.PlayerID = p.playerID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.logger.Printf("events: queue full, dropping %s event", event.Type)
	}
}

func (p *Producer) run() {
	defer p.wg.Done()
	for event := range p.queue {
		p.send(event)
	}
}

func (p *Producer) send(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("events: marshal %s event: %v", event.Type, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(p.playerID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.logger.Printf("events: send %s event: %v", event.Type, err)
	}
}

// Close flushes queued events and closes the producer.
func (p *Producer) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.producer.Close()
}

// IsEnabled reports whether events are being published.
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
