package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// Topic carries every status envelope.
const Topic = "voxchat.status"

// Event types carried in Envelope.Type.
const (
	TypeTurnState  = "turn_state"
	TypeTranscript = "transcript"
	TypeExchange   = "exchange"
	TypeDocuments  = "documents"
	TypeError      = "error"
)

// Envelope is the JSON payload published for each event.
type Envelope struct {
	Type      string              `json:"type"`
	State     domain.TurnState    `json:"state,omitempty"`
	Reason    domain.StatusReason `json:"reason,omitempty"`
	Text      string              `json:"text,omitempty"`
	Exchange  *domain.Exchange    `json:"exchange,omitempty"`
	Documents []string            `json:"documents,omitempty"`
	Code      domain.ErrorCode    `json:"code,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	At        time.Time           `json:"at"`
}

// Bus publishes status events on an in-process watermill channel.
// Publish waits for subscribers to ack so envelopes keep their order.
type Bus struct {
	pubSub *gochannel.GoChannel
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{BlockPublishUntilSubscriberAck: true},
			watermill.NewStdLogger(false, false),
		),
		now: time.Now,
	}
}

// Subscribe returns the envelopes published after the call. Consumers must Ack.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, Topic)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

func (b *Bus) publish(env Envelope) {
	env.At = b.now().UTC()
	payload, err := json.Marshal(env)
	if err != nil {
		logx.Error().Err(err).Str("type", env.Type).Msg("failed to marshal status envelope")
		return
	}
	if err := b.pubSub.Publish(Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		logx.Warn().Err(err).Str("type", env.Type).Msg("failed to publish status envelope")
	}
}

func (b *Bus) TurnStateChanged(state domain.TurnState, reason domain.StatusReason) {
	b.publish(Envelope{Type: TypeTurnState, State: state, Reason: reason})
}

func (b *Bus) UserTranscript(text string) {
	b.publish(Envelope{Type: TypeTranscript, Text: text})
}

func (b *Bus) ExchangeCommitted(exchange domain.Exchange) {
	b.publish(Envelope{Type: TypeExchange, Exchange: &exchange})
}

func (b *Bus) DocumentsChanged(set domain.DocumentSet) {
	b.publish(Envelope{Type: TypeDocuments, Documents: set.Filenames()})
}

func (b *Bus) TurnError(code domain.ErrorCode, detail string) {
	b.publish(Envelope{Type: TypeError, Code: code, Detail: detail})
}

var _ ports.EventSink = (*Bus)(nil)
