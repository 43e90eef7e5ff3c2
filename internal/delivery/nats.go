package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"scanq/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSConn is the part of *nats.Conn the sender needs.
type NATSConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSSender publishes each payload to Subject and waits for the server to
// acknowledge the flush.
type NATSSender struct {
	Conn    NATSConn
	Subject string
}

func NewNATSSender(nc NATSConn, subject string) *NATSSender {
	return &NATSSender{Conn: nc, Subject: subject}
}

func (s *NATSSender) Send(ctx context.Context, payload json.RawMessage) error {
	msg := nats.NewMsg(s.Subject)
	msg.Data = payload
	if id, ok := domain.RecordIDFromContext(ctx); ok {
		// JetStream de-duplicates on Nats-Msg-Id.
		msg.Header.Set(nats.MsgIdHdr, IdempotencyKey(id))
	}

	if err := s.Conn.PublishMsg(msg); err != nil {
		return classifyNATS(fmt.Errorf("publish to %s: %w", s.Subject, err))
	}
	if err := s.Conn.FlushWithContext(ctx); err != nil {
		return classifyNATS(fmt.Errorf("flush %s: %w", s.Subject, err))
	}
	return nil
}

// classifyNATS marks errors that no retry can fix.
func classifyNATS(err error) error {
	switch {
	case errors.Is(err, nats.ErrBadSubject):
		return domain.NewStatusError(http.StatusBadRequest, err)
	case errors.Is(err, nats.ErrMaxPayload):
		return domain.NewStatusError(http.StatusRequestEntityTooLarge, err)
	default:
		return err
	}
}
