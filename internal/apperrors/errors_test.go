package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	base := Conflict("change request already pending")
	wrapped := fmt.Errorf("edit deal: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.Same(t, base, As(wrapped))
}

func TestUntypedErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Nil(t, As(err))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestOnlyGatewayFailuresAreRetryable(t *testing.T) {
	cause := errors.New("connection reset")
	gw := GatewayFailure(cause, "refund failed")

	assert.True(t, IsRetryable(gw))
	assert.ErrorIs(t, gw, cause)
	assert.Equal(t, http.StatusBadGateway, MetadataFor(gw.Kind()).HTTPStatus)

	for _, kind := range []Kind{KindForbidden, KindNotFound, KindInvalidState, KindConflict, KindValidation} {
		assert.False(t, MetadataFor(kind).Retryable, kind)
	}
}

func TestDetailsAccumulate(t *testing.T) {
	err := Validation("invalid input").WithDetail("field", "offer_money").WithDetail("min", 0)

	assert.Equal(t, map[string]interface{}{"field": "offer_money", "min": 0}, err.Details())
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
}
