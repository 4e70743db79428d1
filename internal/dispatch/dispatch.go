// Package dispatch delivers one composed notification to one recipient:
// preference check, rich push attempt, plain-push fallback, and a detached
// best-effort realtime signal. A recipient's failure never aborts the batch;
// it becomes a counted, logged fragment of the pass outcome.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/compose"
	"github.com/table-talk25/tabletalk-notify/internal/push"
	"github.com/table-talk25/tabletalk-notify/internal/realtime"
)

// Status is the terminal state of one recipient's dispatch.
type Status string

const (
	StatusSkipped         Status = "skipped"
	StatusSkippedNoDevice Status = "skipped_no_device"
	StatusSentInteractive Status = "sent_interactive"
	StatusSentFallback    Status = "sent_fallback"
	StatusError           Status = "error"
)

// Result is one recipient's terminal state.
type Result struct {
	UserID string
	Status Status
	Err    string
}

// Outcome aggregates results across a pipeline pass. Callers serialize
// access (the pipeline merges under its own mutex).
type Outcome struct {
	TotalCandidates     int      `json:"totalCandidates"`
	NotificationsSent   int      `json:"notificationsSent"`
	InteractiveSent     int      `json:"interactiveSent"`
	FallbackSent        int      `json:"fallbackSent"`
	SkippedByPreference int      `json:"skippedByPreference"`
	SkippedNoDevice     int      `json:"skippedNoDevice"`
	Errors              []string `json:"errors,omitempty"`
}

// Add folds one recipient result into the aggregate.
func (o *Outcome) Add(r Result) {
	o.TotalCandidates++
	switch r.Status {
	case StatusSkipped:
		o.SkippedByPreference++
	case StatusSkippedNoDevice:
		o.SkippedNoDevice++
	case StatusSentInteractive:
		o.NotificationsSent++
		o.InteractiveSent++
	case StatusSentFallback:
		o.NotificationsSent++
		o.FallbackSent++
	case StatusError:
		o.Errors = append(o.Errors, fmt.Sprintf("%s: %s", r.UserID, r.Err))
	}
}

// Merge folds another aggregate into this one.
func (o *Outcome) Merge(other Outcome) {
	o.TotalCandidates += other.TotalCandidates
	o.NotificationsSent += other.NotificationsSent
	o.InteractiveSent += other.InteractiveSent
	o.FallbackSent += other.FallbackSent
	o.SkippedByPreference += other.SkippedByPreference
	o.SkippedNoDevice += other.SkippedNoDevice
	o.Errors = append(o.Errors, other.Errors...)
}

// Summary renders a one-line log summary.
func (o Outcome) Summary() string {
	return fmt.Sprintf("candidates=%d sent=%d (interactive=%d fallback=%d) skipped_pref=%d skipped_nodevice=%d errors=%d",
		o.TotalCandidates, o.NotificationsSent, o.InteractiveSent, o.FallbackSent,
		o.SkippedByPreference, o.SkippedNoDevice, len(o.Errors))
}

// --------------------------------------------------------------------------
// Coordinator
// --------------------------------------------------------------------------

// PreferenceChecker is the category-level consent gate.
type PreferenceChecker interface {
	CanReceive(ctx context.Context, userID, cat string) bool
}

// TokenSource resolves a user's active device tokens.
type TokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Coordinator runs the per-recipient delivery state machine.
type Coordinator struct {
	prefs    PreferenceChecker
	composer *compose.Composer
	provider push.Provider // nil when push is disabled
	rt       realtime.Emitter
	tokens   TokenSource
	logger   *slog.Logger

	emits sync.WaitGroup
}

// NewCoordinator wires the dispatch collaborators. provider and rt may be
// nil-valued (disabled channels).
func NewCoordinator(prefs PreferenceChecker, composer *compose.Composer, provider push.Provider,
	rt realtime.Emitter, tokens TokenSource, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		prefs:    prefs,
		composer: composer,
		provider: provider,
		rt:       rt,
		tokens:   tokens,
		logger:   logger,
	}
}

// Dispatch runs the state machine for one recipient and returns the terminal
// state. It never returns an error: failures are captured in the Result.
func (c *Coordinator) Dispatch(ctx context.Context, userID string, cat category.Category, data map[string]string) Result {
	if !c.prefs.CanReceive(ctx, userID, string(cat)) {
		return Result{UserID: userID, Status: StatusSkipped}
	}

	payload, err := c.composer.Compose(cat, data)
	if err != nil {
		c.logger.Error("compose failed", "user_id", userID, "category", cat, "error", err)
		return Result{UserID: userID, Status: StatusError, Err: err.Error()}
	}

	// Secondary channel: detached, never joined by the delivery path.
	c.emitRealtime(userID, cat, payload)

	if c.provider == nil || isNilProvider(c.provider) {
		c.logger.Debug("push disabled, realtime only", "user_id", userID, "category", cat)
		return Result{UserID: userID, Status: StatusSkippedNoDevice}
	}

	tokens, err := c.tokens.DeviceTokens(ctx, userID)
	if err != nil || len(tokens) == 0 {
		c.logger.Warn("no device tokens", "user_id", userID, "error", err)
		return Result{UserID: userID, Status: StatusSkippedNoDevice}
	}

	// Interactive attempt: actions and deep link attached.
	_, richErr := c.provider.Send(ctx, tokens, payload, true)
	if richErr == nil {
		return Result{UserID: userID, Status: StatusSentInteractive}
	}
	c.logger.Warn("interactive send failed, falling back",
		"user_id", userID, "category", cat, "error", richErr)

	// Fallback attempt: plain title/body.
	_, plainErr := c.provider.Send(ctx, tokens, payload, false)
	if plainErr == nil {
		return Result{UserID: userID, Status: StatusSentFallback}
	}

	// Keep the original cause alongside the fallback failure.
	c.logger.Error("fallback send failed",
		"user_id", userID, "category", cat,
		"interactive_error", richErr, "fallback_error", plainErr)
	return Result{
		UserID: userID,
		Status: StatusError,
		Err:    fmt.Sprintf("interactive: %v; fallback: %v", richErr, plainErr),
	}
}

// emitRealtime fires the in-app signal on a detached goroutine with its own
// deadline. Failure is logged and goes nowhere else.
func (c *Coordinator) emitRealtime(userID string, cat category.Category, payload *compose.Payload) {
	if c.rt == nil || isNilEmitter(c.rt) {
		return
	}
	c.emits.Add(1)
	go func() {
		defer c.emits.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		msg := strings.TrimSpace(payload.Title + " " + payload.Body)
		if err := c.rt.Emit(emitCtx, []string{userID}, string(cat), msg, payload.Data); err != nil {
			c.logger.Warn("realtime emit failed", "user_id", userID, "category", cat, "error", err)
		}
	}()
}

// DrainRealtime waits for in-flight realtime emits. The pipeline calls it at
// the end of a pass so goroutines never outlive the run accounting; it is
// not part of any per-recipient path.
func (c *Coordinator) DrainRealtime() {
	c.emits.Wait()
}

// isNilProvider guards against a typed-nil *push.FCM stored in the
// interface.
func isNilProvider(p push.Provider) bool {
	fcm, ok := p.(*push.FCM)
	return ok && fcm == nil
}

func isNilEmitter(e realtime.Emitter) bool {
	gw, ok := e.(*realtime.Gateway)
	return ok && gw == nil
}
