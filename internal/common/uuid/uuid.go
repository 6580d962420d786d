// Package uuid issues the time-ordered ids used for users, extensions and commands.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

// New returns a version 7 UUID. Ids issued later sort after earlier ones,
// which keeps btree inserts on the primary keys append-mostly.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// IssuedAt extracts the millisecond timestamp of a version 7 UUID.
func IssuedAt(id UUID) time.Time {
	ms := binary.BigEndian.Uint64(id[0:8]) >> 16
	return time.UnixMilli(int64(ms))
}
