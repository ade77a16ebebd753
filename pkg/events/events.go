package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	TOTPProvisioned    = "totp.provisioned"
	PersonVerified     = "person.verified"
	EncounterStarted   = "encounter.started"
	EncounterSubmitted = "encounter.submitted"
	EncounterApproved  = "encounter.approved"
	EncounterRejected  = "encounter.rejected"
)

// Event payloads
type TOTPProvisionedEvent struct {
	PersonID      int64     `json:"person_id"`
	ProvisionedAt time.Time `json:"provisioned_at"`
}

type PersonVerifiedEvent struct {
	PersonID    int64     `json:"person_id"`
	EncounterID int64     `json:"encounter_id"`
	VerifiedAt  time.Time `json:"verified_at"`
}

type EncounterStartedEvent struct {
	EncounterID int64     `json:"encounter_id"`
	PersonID    int64     `json:"person_id"`
	WorkerID    int64     `json:"worker_id"`
	StartedAt   time.Time `json:"started_at"`
}

type EncounterSubmittedEvent struct {
	EncounterID int64     `json:"encounter_id"`
	PersonID    int64     `json:"person_id"`
	Status      string    `json:"status"`
	RAG         string    `json:"rag"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type EncounterReviewedEvent struct {
	EncounterID int64     `json:"encounter_id"`
	WorkerID    int64     `json:"worker_id"`
	Outcome     string    `json:"outcome"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}
