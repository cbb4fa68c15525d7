package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	assert.Equal(t, http.StatusNotFound, StatusOf(notFound))
	assert.ErrorIs(t, notFound, redis.Nil)

	broken := WrapRedis(errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, StatusOf(broken))
	assert.Equal(t, RedisErrorMessage, MessageOf(broken))
}

func TestKindsSurviveWrapping(t *testing.T) {
	cause := errors.New("model unavailable")
	err := fmt.Errorf("classify: %w", WrapClassification(cause))

	assert.ErrorIs(t, err, ErrClassification)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMerge)
	assert.Equal(t, ClassificationErrorMessage, MessageOf(err))

	var appErr *AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("file %q not found", "a.txt")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Contains(t, err.Error(), `"a.txt"`)
}

func TestStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x")))
	assert.Equal(t, SystemErrorMessage, MessageOf(errors.New("x")))
}
