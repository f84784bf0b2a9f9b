package ws

import (
	"github.com/nrednav/cuid2"
)

func newConnID() string {
	return cuid2.Generate()
}

// roomKey scopes a chat room to its owner; chat ids are only unique per owner.
type roomKey struct {
	owner  string
	chatID string
}
