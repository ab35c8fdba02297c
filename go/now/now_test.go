package now

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.skia.org/clwatcher/go/testutils/unittest"
)

func TestNow_ConstValue_Success(t *testing.T) {
	unittest.SmallTest(t)

	var mockTime = time.Unix(12, 11).UTC()
	backgroundCtx := context.Background()
	ctx := context.WithValue(backgroundCtx, ContextKey, mockTime)

	require.NotEqual(t, mockTime, Now(backgroundCtx))
	require.Equal(t, mockTime, Now(ctx))
}

func TestNow_NowProvider_Success(t *testing.T) {
	unittest.SmallTest(t)

	var monotonicTime int64 = 0
	var mockTimeProvider = func() time.Time {
		monotonicTime += 1
		return time.Unix(monotonicTime, 0).UTC()
	}
	backgroundCtx := context.Background()
	ctx := context.WithValue(backgroundCtx, ContextKey, NowProvider(mockTimeProvider))

	// Calling with ctx makes repeated calls to mockTimeProvider.
	require.Equal(t, int64(1), Now(ctx).Unix())
	require.Equal(t, int64(2), Now(ctx).Unix())
	require.Equal(t, int64(2), monotonicTime)

	// Calling with backgroundCtx returns the real time.
	require.NotEqual(t, int64(2), Now(backgroundCtx).Unix())

	// Assert that mockTimeProvider was not called.
	require.Equal(t, int64(2), monotonicTime)
}

func TestNow_InvalidValue_Panics(t *testing.T) {
	unittest.SmallTest(t)

	backgroundCtx := context.Background()
	ctx := context.WithValue(backgroundCtx, ContextKey, "strings are not valid types for ContextKey")

	require.Panics(t, func() {
		Now(ctx)
	})
}

func TestTimeTravelingContext_SetTime_MovesTheClock(t *testing.T) {
	unittest.SmallTest(t)

	start := time.Date(2017, time.April, 17, 0, 0, 0, 0, time.UTC)
	ctx := TimeTravelingContext(start)
	require.Equal(t, start, Now(ctx))

	later := start.Add(10 * time.Minute)
	ctx.SetTime(later)
	require.Equal(t, later, Now(ctx))
	// The embedded context sees the same clock.
	require.Equal(t, later, Now(ctx.Context))
}

func TestTimeTravelingContext_WithContext_KeepsTheClock(t *testing.T) {
	unittest.SmallTest(t)

	start := time.Unix(1600000000, 0).UTC()
	ttCtx := TimeTravelingContext(start)

	type parentKeyType string
	parentKey := parentKeyType("parent")
	parent := context.WithValue(context.Background(), parentKey, "hello")
	ctx := ttCtx.WithContext(parent)

	require.Equal(t, "hello", ctx.Value(parentKey))
	require.Equal(t, start, Now(ctx))
	ctx.SetTime(start.Add(time.Second))
	require.Equal(t, start.Add(time.Second), Now(ctx))
}
