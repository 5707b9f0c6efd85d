package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithMeta(ctx, Meta{ClientIP: "10.0.0.1"})
	ctx = WithRequestID(ctx, "req-1")

	meta := FromContext(ctx)
	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, "10.0.0.1", meta.ClientIP)
}
