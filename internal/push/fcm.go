// Package push adapts the composed notification payload to the upstream
// push provider. Firebase Cloud Messaging is the only concrete provider;
// everything above it talks to the Provider interface so tests can swap in
// fakes.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/table-talk25/tabletalk-notify/internal/compose"
)

// Result is the per-batch outcome of one provider call. Partial success is
// normal: some tokens succeed while others fail.
type Result struct {
	SuccessCount int
	FailureCount int
	TokenErrors  map[string]string // token → error text for failed sends
}

// Provider submits a payload to a set of device tokens. rich=false strips
// actions and deep link down to a plain title/body notification.
type Provider interface {
	Send(ctx context.Context, tokens []string, p *compose.Payload, rich bool) (Result, error)
}

// FCM is the Firebase Cloud Messaging provider.
type FCM struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCM builds an FCM provider from a service-account credentials file.
// Returns (nil, nil) when credentialsFile is empty: push is disabled and the
// engine runs on the realtime channel alone.
func NewFCM(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCM, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}
	return &FCM{client: client, logger: logger}, nil
}

// Send delivers the payload to every token in one multicast call. The
// returned error is non-nil only when the provider call itself failed or
// every token failed; per-token failures are reported in Result.
func (f *FCM) Send(ctx context.Context, tokens []string, p *compose.Payload, rich bool) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, fmt.Errorf("no tokens to send to")
	}

	data := map[string]string{
		"category": string(p.Category),
	}
	for k, v := range p.Data {
		data[k] = v
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(p.Priority),
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority(p.Priority)},
		},
	}

	if rich {
		data["deepLink"] = p.DeepLink
		if len(p.Actions) > 0 {
			actions, err := json.Marshal(p.Actions)
			if err != nil {
				return Result{}, fmt.Errorf("encode actions: %w", err)
			}
			data["actions"] = string(actions)
			// Client resolves the action set from the category key.
			msg.APNS.Payload = &messaging.APNSPayload{
				Aps: &messaging.Aps{Category: string(p.Category)},
			}
		}
	}
	msg.Data = data

	br, err := f.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("fcm multicast: %w", err)
	}

	res := Result{
		SuccessCount: br.SuccessCount,
		FailureCount: br.FailureCount,
	}
	for i, r := range br.Responses {
		if r.Error != nil {
			if res.TokenErrors == nil {
				res.TokenErrors = make(map[string]string)
			}
			res.TokenErrors[tokens[i]] = r.Error.Error()
			if messaging.IsUnregistered(r.Error) {
				f.logger.Debug("stale device token", "token_suffix", suffix(tokens[i]))
			}
		}
	}
	if res.SuccessCount == 0 {
		return res, fmt.Errorf("fcm multicast: all %d tokens failed", res.FailureCount)
	}
	return res, nil
}

func androidPriority(p string) string {
	if p == "high" {
		return "high"
	}
	return "normal"
}

func apnsPriority(p string) string {
	if p == "high" {
		return "10"
	}
	return "5"
}

// suffix returns the tail of a token for log correlation without logging the
// full credential.
func suffix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[len(token)-8:]
}
