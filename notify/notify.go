// Package notify delivers push notifications through Firebase Cloud
// Messaging and mirrors them onto the live websocket stream.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/store"
	"github.com/Sanidhya49/Invested/types"
)

var (
	ErrNoToken       = errors.New("FCM token not found for user")
	ErrNotConfigured = errors.New("FCM is not configured")
)

// SendError wraps a failed push.
type SendError struct{ Err error }

func (e *SendError) Error() string { return "FCM send failed: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// Message is one push to one device.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender pushes a message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// FCMSender sends through the Firebase messaging client.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(c *messaging.Client) *FCMSender {
	return &FCMSender{client: c}
}

func (f *FCMSender) Send(ctx context.Context, m Message) (string, error) {
	return f.client.Send(ctx, &messaging.Message{
		Token:        m.Token,
		Notification: &messaging.Notification{Title: m.Title, Body: m.Body},
		Data:         m.Data,
	})
}

// Request is the body of /send-notification. Empty fields take defaults.
type Request struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data"`
	FCMToken string         `json:"fcm_token"`
}

// Result is returned to the caller after a successful push.
type Result struct {
	Success          bool   `json:"success"`
	MessageID        string `json:"message_id"`
	NotificationType string `json:"notification_type"`
}

// Broadcaster delivers a notification to a user's open websocket streams.
type Broadcaster interface {
	Notify(uid string, payload types.NotificationPayload) error
}

type Service struct {
	Sender Sender
	Store  store.UserStore
	Hub    Broadcaster
}

func (r Request) withDefaults() Request {
	if r.Type == "" {
		r.Type = "general"
	}
	if r.Title == "" {
		r.Title = "Invested Alert"
	}
	if r.Body == "" {
		r.Body = "You have a new notification"
	}
	return r
}

// Notify pushes req to uid's device. The token comes from the request, or
// else from the user document.
func (s *Service) Notify(ctx context.Context, uid string, req Request) (Result, error) {
	req = req.withDefaults()

	token := req.FCMToken
	if token == "" && s.Store != nil {
		if u, err := s.Store.GetUser(ctx, uid); err == nil {
			token = u.FCMToken
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warnf("notify: could not read FCM token for %s: %v", uid, err)
		}
	}
	if token == "" {
		return Result{}, ErrNoToken
	}

	data := stringify(req.Data)
	if s.Hub != nil {
		err := s.Hub.Notify(uid, types.NotificationPayload{
			NotificationType: req.Type,
			Title:            req.Title,
			Body:             req.Body,
			Data:             data,
		})
		if err != nil {
			logger.Warnf("notify: websocket delivery to %s failed: %v", uid, err)
		}
	}

	if s.Sender == nil {
		return Result{}, &SendError{Err: ErrNotConfigured}
	}
	id, err := s.Sender.Send(ctx, Message{Token: token, Title: req.Title, Body: req.Body, Data: data})
	if err != nil {
		return Result{}, &SendError{Err: err}
	}
	logger.Infof("notify: sent %s to %s (%s)", req.Type, uid, id)
	return Result{Success: true, MessageID: id, NotificationType: req.Type}, nil
}

// GuardianAlert is the proactive unusual-spending alert.
func GuardianAlert() Request {
	return Request{
		Type:  "guardian_alert",
		Title: "🚨 Guardian Alert",
		Body:  "Unusual spending pattern detected in your account!",
		Data: map[string]any{
			"type":            "guardian_alert",
			"alert_id":        "alert_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
			"severity":        "high",
			"action_required": "true",
		},
	}
}

// FCM data values must be strings.
func stringify(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
