package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	cctx, parse := StartChildSpan(ctx, "parse")
	_, inner := StartChildSpan(cctx, "tokenize")
	inner.End()
	parse.SetAttr("clauses", 2)
	parse.End()
	_, exec := StartChildSpan(ctx, "execute")
	time.Sleep(time.Millisecond)
	exec.End()
	root.End()
	first := root.Duration()
	root.End()

	assert.Equal(t, first, root.Duration(), "End is idempotent")
	assert.Same(t, root, FromContext(ctx))
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "parse", children[0].Name)
	assert.Equal(t, "req-1", inner.TraceID)
	assert.GreaterOrEqual(t, exec.Duration(), time.Millisecond)
	v, ok := parse.Attr("clauses")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(context.Background(), logger)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "span=parse depth=1")
	assert.Contains(t, lines[1], "clauses=2")
	assert.Contains(t, lines[2], "span=tokenize depth=2")
}

func TestNilSpanIsSafe(t *testing.T) {
	ctx, s := StartChildSpan(context.Background(), "orphan")
	assert.Nil(t, s)
	assert.Nil(t, FromContext(ctx))
	s.SetAttr("k", 1)
	s.End()
	s.Log(ctx, slog.Default())
	assert.Zero(t, s.Duration())
	assert.Nil(t, s.Children())
}

func TestLogSkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	_, root := StartSpan(context.Background(), "search", "r")
	root.End()
	root.Log(context.Background(), logger)
	assert.Empty(t, buf.String())
}
