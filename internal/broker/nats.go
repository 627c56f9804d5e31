package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS implements Publisher and Subscriber over a core NATS connection.
type NATS struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url with reconnect enabled and returns a
// broker bound to the connection. name identifies the client in the server's
// monitoring endpoints.
func Connect(url, name string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn}, nil
}

// NewNATS wraps an existing connection. The caller retains ownership of conn.
func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

// Conn exposes the underlying connection for JetStream setup.
func (n *NATS) Conn() *nats.Conn { return n.conn }

// Publish marshals payload as JSON and publishes it on topic.
func (n *NATS) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.conn.Publish(topic, data)
}

// Subscribe registers handler for topic and returns an unsubscribe function.
func (n *NATS) Subscribe(topic string, handler func(data []byte)) (func() error, error) {
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Close drains and closes the underlying connection.
func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
