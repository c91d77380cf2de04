package db

import (
	"io"

	"github.com/iamwavecut/ngmod/internal/moderation"
)

// Client is a persistent moderation.SnapshotStore.
type Client interface {
	moderation.SnapshotStore
	io.Closer
}
