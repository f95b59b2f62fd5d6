package verifier

import "context"

// Probe is the network side of evaluation. Implementations never fail: a
// missing content type is reported as ok=false and a failed fetch as "".
type Probe interface {
	FetchMIMEType(ctx context.Context, url string) (string, bool)
	FetchText(ctx context.Context, url string) string
}
