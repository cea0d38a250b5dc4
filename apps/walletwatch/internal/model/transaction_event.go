package model

import (
	"time"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// TransactionEvent is derived from chain data at detection time and is
// never persisted.
type TransactionEvent struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     string    `json:"value"` // decimal string, already divided by token decimals
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
}
