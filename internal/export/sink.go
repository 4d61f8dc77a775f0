// Package export writes audit reports to durable storage, optionally sealed
// to auditor age recipients.
package export

import "context"

// Sink stores an object under key and returns a location string for it.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
