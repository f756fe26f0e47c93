package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"forum/internal/core"
)

// MessageVersion is bumped when the wire layout of LedgerMessage changes.
const MessageVersion = 1

// LedgerMessage is the wire form of a ledger event. It carries ids only;
// consumers read current state from the store.
type LedgerMessage struct {
	Version int `json:"version"`
	core.LedgerEvent
}

func NewLedgerMessage(ev core.LedgerEvent) *LedgerMessage {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return &LedgerMessage{Version: MessageVersion, LedgerEvent: ev}
}

func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes and checks a message body.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case core.EventTransactionRecorded, core.EventMemberUpdated, core.EventMemberDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.MemberID == "" {
		return nil, fmt.Errorf("event %s without member id", msg.Type)
	}
	if msg.Version > MessageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return &msg, nil
}
