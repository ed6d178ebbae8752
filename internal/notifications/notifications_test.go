package notifications_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coffeemasters/internal/notifications"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	return m.Called(n.Title, n.Body).Error(0)
}

func TestHandle_Defaults(t *testing.T) {
	notifier := new(MockNotifier)
	h := notifications.NewHandler(notifier, clockwork.NewFakeClock(), zaptest.NewLogger(t))

	notifier.On("Notify", notifications.DefaultTitle, notifications.DefaultBody).Return(nil).Twice()
	require.NoError(t, h.Handle(context.Background(), nil))
	require.NoError(t, h.Handle(context.Background(), []byte(`{}`)))

	notifier.On("Notify", notifications.DefaultTitle, "Latte is ready").Return(nil).Once()
	require.NoError(t, h.Handle(context.Background(), []byte(`{"body":"Latte is ready"}`)))

	notifier.On("Notify", "Hello", notifications.DefaultBody).Return(nil).Once()
	require.NoError(t, h.Handle(context.Background(), []byte(`{"title":"Hello"}`)))

	recent := h.Recent()
	require.Len(t, recent, 4)
	assert.Equal(t, "Hello", recent[0].Title)
	assert.Equal(t, "Latte is ready", recent[1].Body)
	assert.Len(t, recent[0].Actions, 2)
	notifier.AssertExpectations(t)
}

func TestHandle_Failures(t *testing.T) {
	notifier := new(MockNotifier)
	h := notifications.NewHandler(notifier, clockwork.NewFakeClock(), zaptest.NewLogger(t))

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("display unavailable")).Once()
	assert.Error(t, h.Handle(context.Background(), []byte(`{"title":"x"}`)))
	assert.Empty(t, h.Recent())
}

func TestRecent_KeepsLatest(t *testing.T) {
	h := notifications.NewHandler(notifications.NewLogNotifier(zaptest.NewLogger(t)), clockwork.NewFakeClock(), zaptest.NewLogger(t))
	for i := 0; i < 30; i++ {
		require.NoError(t, h.Handle(context.Background(), []byte(fmt.Sprintf(`{"body":"n%d"}`, i))))
	}
	recent := h.Recent()
	require.Len(t, recent, 20)
	assert.Equal(t, "n29", recent[0].Body)
	assert.Equal(t, "n10", recent[19].Body)
}
