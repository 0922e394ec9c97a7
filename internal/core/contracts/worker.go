package contracts

import "context"

// AsyncWorker consumes queued push requests and delivers them through the
// broadcaster.
type AsyncWorker interface {
	// Run starts the consumer loop; returns when ctx is cancelled.
	Run(ctx context.Context) error
	// ProcessPush decodes one queued push request and delivers it.
	ProcessPush(ctx context.Context, messageID string, raw []byte) error
}
