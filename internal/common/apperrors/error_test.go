package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("TestError", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErr)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)
	})

	t.Run("derivations leave sentinels untouched", func(t *testing.T) {
		ErrSentinel := New("sentinel").SetStatusCode(http.StatusNotFound).SetCode("NOT_FOUND")
		derived := ErrSentinel.Msg("object missing").Err(errors.New("cause")).WithDetails(map[string]string{"k": "v"})

		assert.Equal(t, "sentinel", ErrSentinel.Error())
		assert.Empty(t, ErrSentinel.Unwrap())
		assert.Nil(t, ErrSentinel.Details())

		assert.Equal(t, "object missing", derived.Error())
		assert.Equal(t, http.StatusNotFound, derived.StatusCode())
		assert.Equal(t, "NOT_FOUND", derived.Code())
		assert.Equal(t, map[string]string{"k": "v"}, derived.Details())
		assert.ErrorIs(t, derived, ErrSentinel)
	})

	t.Run("prefix and suffix are stable", func(t *testing.T) {
		err := New("boom").Prefix("storage").Suffix("key a/b")
		assert.Equal(t, "storage: boom: key a/b", err.Error())
		assert.Equal(t, "storage: boom: key a/b", err.Error())
	})

	t.Run("expanded message lists causes", func(t *testing.T) {
		err := New("put failed").Err(errors.New("disk full"), errors.New("retry exhausted")).SetExpandError(true)
		assert.Equal(t, "put failed: disk full;retry exhausted", err.ErrorAll())
		assert.Equal(t, "put failed", New("put failed").ErrorAll())
	})
}
