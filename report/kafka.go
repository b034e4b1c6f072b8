package report

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	ECode050101 = e.Code0501 + "01"
	ECode050102 = e.Code0501 + "02"
	ECode050103 = e.Code0501 + "03"
)

// MessageWriter is satisfied by *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event the JSON document published for each progress message
type Event struct {
	Run      string    `json:"run"`
	Seq      int       `json:"seq"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// Kafka publishes progress messages as events keyed by the run id, so every
// event of a run lands on the same partition in order. Publishing failures
// are logged and never fail the migration.
type Kafka struct {
	Context context.Context

	mu  sync.Mutex
	w   MessageWriter
	run string
	seq int
}

// NewKafka returns a Kafka reporter for the run
func NewKafka(w MessageWriter, run string) (k *Kafka) {
	return &Kafka{
		Context: context.Background(),
		w:       w,
		run:     run,
	}
}

func (k *Kafka) Report(sev Severity, msg string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.seq++
	b, err := json.Marshal(&Event{
		Run:      k.run,
		Seq:      k.seq,
		Severity: sev,
		Message:  msg,
		Time:     time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Msgf("[%s]failed to encode event", ECode050101)
		return
	}

	if err := k.w.WriteMessages(k.Context, kafka.Message{
		Key:   []byte(k.run),
		Value: b,
	}); err != nil {
		log.Warn().Err(err).Msgf("[%s]failed to publish event", ECode050102)
	}
}

// ParseEvent decodes an event published by the Kafka reporter
func ParseEvent(b []byte) (ev *Event, err error) {
	ev = &Event{}
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, e.W(err, ECode050103)
	}

	return ev, nil
}
