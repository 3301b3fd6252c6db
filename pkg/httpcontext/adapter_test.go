package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/ocxers/pkg/logger"
)

func TestAttach_KeepsIncomingRequestID(t *testing.T) {
	t.Parallel()
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(RequestIDHeader, "req-42")
	rc.Request.Header.SetUserAgent("probe/1.0")

	ctx, cancel := NewAdapter(context.Background(), time.Second).Attach(&rc)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestID(ctx))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek(RequestIDHeader)))
	assert.Equal(t, "probe/1.0", ctx.Value(KeyUserAgent))
	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestAttach_GeneratesRequestIDAndFollowsParent(t *testing.T) {
	t.Parallel()
	parent, stop := context.WithCancel(context.Background())
	var rc fasthttp.RequestCtx

	ctx, cancel := NewAdapter(parent, 0).Attach(&rc)
	defer cancel()

	_, err := uuid.Parse(appLogger.RequestID(ctx))
	require.NoError(t, err)

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("request context outlived its parent")
	}
}
