package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, m)
	return "projects/invested/messages/1", nil
}

type recordingHub struct {
	uid     string
	payload types.NotificationPayload
}

func (h *recordingHub) Notify(uid string, p types.NotificationPayload) error {
	h.uid, h.payload = uid, p
	return nil
}

func TestNotifyDefaultsAndStoredToken(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Merge(context.Background(), "u1", map[string]any{store.FieldFCMToken: "device-1"}))
	sender := &recordingSender{}
	hub := &recordingHub{}
	svc := &Service{Sender: sender, Store: s, Hub: hub}

	res, err := svc.Notify(context.Background(), "u1", Request{Data: map[string]any{"count": 3.0}})
	require.NoError(t, err)

	assert.Equal(t, Result{Success: true, MessageID: "projects/invested/messages/1", NotificationType: "general"}, res)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, Message{
		Token: "device-1",
		Title: "Invested Alert",
		Body:  "You have a new notification",
		Data:  map[string]string{"count": "3"},
	}, sender.sent[0])
	assert.Equal(t, "u1", hub.uid)
	assert.Equal(t, "general", hub.payload.NotificationType)
}

func TestNotifyTokenFromRequest(t *testing.T) {
	sender := &recordingSender{}
	svc := &Service{Sender: sender, Store: store.NewMemoryStore()}
	_, err := svc.Notify(context.Background(), "u1", Request{FCMToken: "from-body", Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "from-body", sender.sent[0].Token)
	assert.Equal(t, "Hi", sender.sent[0].Title)
}

func TestNotifyErrors(t *testing.T) {
	svc := &Service{Sender: &recordingSender{}, Store: store.NewMemoryStore()}
	_, err := svc.Notify(context.Background(), "nobody", Request{})
	assert.ErrorIs(t, err, ErrNoToken)

	svc.Sender = &recordingSender{err: errors.New("registration-token-not-registered")}
	_, err = svc.Notify(context.Background(), "u1", Request{FCMToken: "t"})
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "FCM send failed: registration-token-not-registered", err.Error())

	svc.Sender = nil
	_, err = svc.Notify(context.Background(), "u1", Request{FCMToken: "t"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGuardianAlert(t *testing.T) {
	r := GuardianAlert()
	assert.Equal(t, "guardian_alert", r.Type)
	assert.Equal(t, "🚨 Guardian Alert", r.Title)
	assert.Equal(t, "Unusual spending pattern detected in your account!", r.Body)
	assert.Regexp(t, `^alert_[0-9a-f]{8}$`, r.Data["alert_id"])
	assert.Equal(t, "high", r.Data["severity"])
	assert.Equal(t, "true", r.Data["action_required"])
}
