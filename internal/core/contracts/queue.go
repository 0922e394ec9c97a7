package contracts

import "context"

// PushQueue is the out-of-band channel external services use to hand the
// gateway envelopes for delivery. Producers XADD to a stream; the push
// worker consumes with a consumer group.
type PushQueue interface {
	// Publish appends a push request to the stream.
	Publish(ctx context.Context, payload []byte) error
	// Subscribe reads the stream through a consumer group and hands each
	// entry to the handler. Runs until ctx is cancelled.
	Subscribe(ctx context.Context, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// Acknowledge marks an entry processed (XACK).
	Acknowledge(ctx context.Context, group, messageID string) error
	// DeleteMessage trims a processed entry from the stream (XDEL).
	DeleteMessage(ctx context.Context, messageID string) error
}
