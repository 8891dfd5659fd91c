package policies

import (
	"context"
	"io"
)

// ObjectStore keeps generated documents such as receipts.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
}
