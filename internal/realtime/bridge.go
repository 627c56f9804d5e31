package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/domain"
)

// Client event names, the contract seen by the web client.
const (
	EventReceiveMessage = "ReceiveMessage"
	EventMemberJoined   = "MemberJoined"
	EventMemberLeft     = "MemberLeft"
)

// Broadcaster is the hub-side contract the bridge pushes into.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Bridge is the stateless fan-out translation between broker topics and
// realtime client events. It keeps no state, performs no retries and no
// deduplication; receivers tolerate duplicate pushes by contract.
type Bridge struct {
	sub broker.Subscriber
	hub Broadcaster
	log zerolog.Logger

	stops []func() error
}

// NewBridge wires a bridge between sub and hub.
func NewBridge(sub broker.Subscriber, hub Broadcaster, log zerolog.Logger) *Bridge {
	return &Bridge{sub: sub, hub: hub, log: log}
}

// Start subscribes to the three chat topics. On any subscription error the
// already-established subscriptions are torn down again.
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler func(data []byte)
	}{
		{broker.TopicMessageSent, b.onMessageSent},
		{broker.TopicMemberJoined, b.onMemberJoined},
		{broker.TopicMemberLeft, b.onMemberLeft},
	}
	for _, s := range subs {
		stop, err := b.sub.Subscribe(s.topic, s.handler)
		if err != nil {
			b.Stop()
			return err
		}
		b.stops = append(b.stops, stop)
	}
	return nil
}

// Stop tears down all subscriptions.
func (b *Bridge) Stop() {
	for _, stop := range b.stops {
		if err := stop(); err != nil {
			b.log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	b.stops = nil
}

func (b *Bridge) onMessageSent(data []byte) {
	var evt domain.MessageSentEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		b.log.Warn().Err(err).Msg("invalid message sent event")
		return
	}
	b.log.Info().Str("message_id", evt.ID).Str("sender_id", evt.SenderID).Msg("broadcasting message")
	b.hub.Broadcast(EventReceiveMessage, evt)
}

func (b *Bridge) onMemberJoined(data []byte) {
	var evt domain.MemberJoinedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		b.log.Warn().Err(err).Msg("invalid member joined event")
		return
	}
	b.log.Info().Str("member_id", evt.ID).Str("name", evt.Name).Msg("broadcasting member joined")
	b.hub.Broadcast(EventMemberJoined, evt)
}

func (b *Bridge) onMemberLeft(data []byte) {
	var evt domain.MemberLeftEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		b.log.Warn().Err(err).Msg("invalid member left event")
		return
	}
	b.log.Info().Str("member_id", evt.ID).Str("name", evt.Name).Msg("broadcasting member left")
	b.hub.Broadcast(EventMemberLeft, evt)
}
