package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/cloudx-io/carauction/core"
)

// Event kinds, also the last subject token
const (
	EventBidAccepted      = "bid_accepted"
	EventAuctionCompleted = "auction_completed"
	EventBidWithdrawn     = "bid_withdrawn"
)

const eventStreamName = "AUCTION_EVENTS"

// AuctionEvent is published after a ledger operation has been applied
// Consumers must not treat it as the source of truth; the ledger is
type AuctionEvent struct {
	EventID           string      `json:"event_id"`
	AuctionID         string      `json:"auction_id"`
	Kind              string      `json:"kind"`
	Participant       string      `json:"participant,omitempty"`
	Amount            core.Amount `json:"amount"`
	HighestBid        core.Amount `json:"highest_bid"`
	ParticipantsCount uint64      `json:"participants_count"`
	Timestamp         time.Time   `json:"timestamp"`
}

func newAuctionEvent(auctionID, kind string, participant core.Participant, amount, highestBid core.Amount, participantsCount uint64) AuctionEvent {
	return AuctionEvent{
		EventID:           uuid.NewString(),
		AuctionID:         auctionID,
		Kind:              kind,
		Participant:       participant.String(),
		Amount:            amount,
		HighestBid:        highestBid,
		ParticipantsCount: participantsCount,
		Timestamp:         time.Now().UTC(),
	}
}

// Subject is the NATS subject the event is published on
func (e AuctionEvent) Subject() string {
	return fmt.Sprintf("auction.events.%s.%s", e.AuctionID, e.Kind)
}

// EventPublisher delivers auction events downstream
type EventPublisher interface {
	Publish(ctx context.Context, event AuctionEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, AuctionEvent) error {
	return nil
}

// JetStreamPublisher publishes events to a persistent JetStream stream
type JetStreamPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewJetStreamPublisher connects to NATS and makes sure the event stream exists
func NewJetStreamPublisher(natsURL string) (*JetStreamPublisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        eventStreamName,
		Description: "Auction ledger events",
		Subjects:    []string{"auction.events.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	log.Printf("INFO: JetStream stream %s ready", eventStreamName)

	return &JetStreamPublisher{conn: conn, js: js}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject(), data)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	log.Printf("INFO: Published %s to %s, seq=%d", event.EventID, event.Subject(), ack.Sequence)
	return nil
}

func (p *JetStreamPublisher) Close() {
	p.conn.Close()
}
