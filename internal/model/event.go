package model

import "time"

// Event records a confirmed change made through the dashboard.
type Event struct {
	ID        string    `cbor:"id"`
	Action    Action    `cbor:"action"`
	Multisig  string    `cbor:"multisig"`
	Index     uint64    `cbor:"index"`
	Actor     string    `cbor:"actor"`
	Signature string    `cbor:"signature"`
	Steps     []string  `cbor:"steps"`
	At        time.Time `cbor:"at"`
}
