package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeAccessDenied, GetCode(ErrAccessDenied))
	assert.Equal(t, CodeNotFound, GetCode(fmt.Errorf("load: %w", ErrNotFound)))
	// 非业务错误统一视为服务繁忙
	assert.Equal(t, CodeServerBusy, GetCode(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := Wrapf(cause, CodeDBError, "create conversation %s", "C1")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, CodeDBError))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, "create conversation C1: duplicate entry", err.Error())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(Wrap(errors.New("record not found"), CodeNotFound, "message")))
	assert.True(t, IsNotFound(errors.New("record not found")))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(ErrForbidden))
}

func TestValidation(t *testing.T) {
	err := Validation("limit must be between %d and %d", 1, 100)
	assert.Equal(t, CodeInvalidParam, err.Code)
	assert.Equal(t, "limit must be between 1 and 100", err.Msg)
}
