package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/tools"
)

type sentNotification struct {
	recipient string
	channel   string
	message   string
}

func recordingSender(sent *[]sentNotification, err error) Sender {
	return func(_ context.Context, recipient, channel, message string) (string, error) {
		if err != nil {
			return "", err
		}
		*sent = append(*sent, sentNotification{recipient: recipient, channel: channel, message: message})
		return "rcpt-1", nil
	}
}

func TestNewRegistryRequiresSender(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
}

func TestNotifyDefaults(t *testing.T) {
	var sent []sentNotification
	reg, err := NewRegistry(recordingSender(&sent, nil))
	require.NoError(t, err)

	out, err := reg.Invoke(context.Background(), "notifications.notify", "", map[string]any{
		"message": "your replacement order is on the way",
	})
	require.NoError(t, err)
	require.Equal(t, "notification rcpt-1 sent to customer via email", out)
	require.Len(t, sent, 1)
	require.Equal(t, "customer", sent[0].recipient)
	require.Equal(t, "email", sent[0].channel)
	require.Equal(t, "your replacement order is on the way", sent[0].message)
}

func TestNotifyExplicitRecipientAndChannel(t *testing.T) {
	var sent []sentNotification
	reg, err := NewRegistry(recordingSender(&sent, nil))
	require.NoError(t, err)

	out, err := reg.Invoke(context.Background(), "notifications.notify", "", map[string]any{
		"message":   "driver will retry tomorrow",
		"recipient": "c-42",
		"channel":   "sms",
	})
	require.NoError(t, err)
	require.Equal(t, "notification rcpt-1 sent to c-42 via sms", out)
	require.Equal(t, "sms", sent[0].channel)
}

func TestNotifyRejectsUnknownChannel(t *testing.T) {
	var sent []sentNotification
	reg, err := NewRegistry(recordingSender(&sent, nil))
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "notifications.notify", "", map[string]any{
		"message": "hello",
		"channel": "fax",
	})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, sent)
}

func TestNotifyRequiresMessage(t *testing.T) {
	var sent []sentNotification
	reg, err := NewRegistry(recordingSender(&sent, nil))
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "notifications.notify", "", map[string]any{
		"recipient": "c-42",
	})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestNotifySenderFailure(t *testing.T) {
	var sent []sentNotification
	reg, err := NewRegistry(recordingSender(&sent, errors.New("gateway timeout")))
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "notifications.notify", "", map[string]any{
		"message": "hello",
	})
	require.ErrorContains(t, err, "send notification")
}
