// Package storage owns the on-disk session database the messaging client
// keeps its device keys in.
package storage

import (
	"context"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

// SessionStore is what the rest of the bridge needs from the session database.
type SessionStore interface {
	messaging.DeviceSource
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
