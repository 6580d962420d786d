package logtrace

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	InitLogger("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.False(t, IsTraceEnabled())

	InitLogger("trace")
	assert.True(t, IsTraceEnabled())

	InitLogger("not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	InitLogger()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestRequestId(t *testing.T) {
	ctx := WithRequestId(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIdFromContext(ctx))
	assert.Equal(t, "", RequestIdFromContext(context.Background()))
}
