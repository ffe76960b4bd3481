package v4l4j

import "context"

// ComponentBridge is the sole exchange primitive with an external component.
//
// Exchange sends buf for the record identified by queryID. With doWrite set
// the component applies buf; with doRead set it returns its current record,
// read after any write. Implementations must either fully apply a write or
// return an error. Callers must not assume anything about retries or locking
// inside the bridge.
type ComponentBridge interface {
	Exchange(ctx context.Context, queryID int32, buf []byte, doRead, doWrite bool) ([]byte, error)
}

// ExchangeFunc adapts a function to ComponentBridge.
type ExchangeFunc func(ctx context.Context, queryID int32, buf []byte, doRead, doWrite bool) ([]byte, error)

// Exchange calls f.
func (f ExchangeFunc) Exchange(ctx context.Context, queryID int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	return f(ctx, queryID, buf, doRead, doWrite)
}
