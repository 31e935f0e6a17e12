// Package dispatch orchestrates one crawl: gate on connectivity,
// authenticate and parse the feed, diff against persisted progress, fan out
// notifications, and commit progress markers.
package dispatch

import (
	"context"
	"errors"
	"time"

	"announced/internal/directory"
	"announced/internal/eventbus"
	"announced/internal/feed"
	"announced/internal/netcheck"
	"announced/internal/notifier"
	"announced/internal/settings"
	logx "announced/pkg/logx"
)

// AppID names this application in settings namespaces and notification
// object references.
const AppID = "announced"

// Progress record keys (namespace AppID).
const (
	pubDateKey     = "pub_date"
	publishedValue = "published"
)

// Authenticator yields the authenticated feed body for one run, or the
// specific rejection. Satisfied by *feed.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context) ([]byte, error)
}

// Notifier is the delivery collaborator as the engine sees it.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Engine owns the run state machine. It is the only writer of the progress
// record.
type Engine struct {
	log logx.Logger

	check    netcheck.Checker
	auth     Authenticator
	store    settings.Store
	resolver directory.Resolver
	notify   Notifier
	bus      eventbus.Bus

	now func() time.Time
}

func New(check netcheck.Checker, auth Authenticator, store settings.Store,
	resolver directory.Resolver, notify Notifier, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:      log,
		check:    check,
		auth:     auth,
		store:    store,
		resolver: resolver,
		notify:   notify,
		bus:      bus,
		now:      time.Now,
	}
}

// Run executes one crawl. It never returns an error: every verification or
// parse failure is absorbed here (fail-closed, fail-silent) and recorded in
// the outcome.
func (e *Engine) Run(ctx context.Context) Outcome {
	start := e.now()
	out := e.run(ctx)
	out.Took = e.now().Sub(start)

	switch out.Status {
	case StatusSkipped:
		e.log.Info("run skipped", logx.String("reason", out.Reason), logx.Duration("took", out.Took))
	case StatusFailed:
		e.log.Warn("run failed", logx.String("reason", out.Reason), logx.Duration("took", out.Took))
	default:
		e.log.Info("run completed",
			logx.Int("new_items", out.NewItems),
			logx.Int("recipients", out.Recipients),
			logx.Int("notified", out.Notified),
			logx.Int("delivery_failures", out.Failed),
			logx.Duration("took", out.Took))
	}

	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: out})
	}
	return out
}

func (e *Engine) run(ctx context.Context) Outcome {
	// Gating. Being offline is expected and benign.
	if !e.check.Online(ctx) {
		return Outcome{Status: StatusSkipped, Reason: ReasonOffline}
	}

	// Authenticating. Any rejection means this run's data cannot be
	// trusted; nothing is written.
	body, err := e.auth.Authenticate(ctx)
	if err != nil {
		e.log.Warn("feed authentication failed", logx.Err(err))
		return Outcome{Status: StatusFailed, Reason: authReason(err)}
	}

	// Parsing.
	f, err := feed.Parse(body)
	if err != nil {
		e.log.Warn("feed parse failed", logx.Err(err))
		return Outcome{Status: StatusFailed, Reason: "malformed_feed"}
	}

	// Diffing.
	lastPubDate := e.store.Get(ctx, AppID, pubDateKey, "")
	if lastPubDate == "" {
		// First run: establish the baseline, never mass-deliver history.
		if err := e.store.Set(ctx, AppID, pubDateKey, f.PubDate); err != nil {
			e.log.Warn("baseline commit failed", logx.Err(err))
			return Outcome{Status: StatusFailed, Reason: "progress_write_failed"}
		}
		return Outcome{Status: StatusSkipped, Reason: ReasonBaseline}
	}
	if f.PubDate == lastPubDate {
		return Outcome{Status: StatusSkipped, Reason: ReasonNothingNew}
	}

	lastPubTime, ok := parseStoredPubDate(lastPubDate)
	if !ok {
		// The stored watermark is unreadable. Re-baseline instead of
		// guessing which items are new; a wrong guess either spams every
		// historical item or drops real ones.
		e.log.Warn("stored pub_date unreadable; re-baselining", logx.String("pub_date", lastPubDate))
		if err := e.store.Set(ctx, AppID, pubDateKey, f.PubDate); err != nil {
			return Outcome{Status: StatusFailed, Reason: "progress_write_failed"}
		}
		return Outcome{Status: StatusSkipped, Reason: ReasonBaseline}
	}

	// Notifying. The audience is resolved once and lives only for this run.
	groups := directory.NotificationGroups(ctx, e.store, AppID)
	audience, err := directory.Audience(ctx, e.resolver, groups)
	if err != nil {
		e.log.Warn("audience resolution failed", logx.Err(err))
		return Outcome{Status: StatusFailed, Reason: "directory_unavailable"}
	}

	out := Outcome{Status: StatusCompleted, Recipients: len(audience)}
	for _, item := range f.Items {
		if e.store.Get(ctx, AppID, item.ID, "") == publishedValue {
			continue
		}
		if item.PubTime.IsZero() || !item.PubTime.After(lastPubTime) {
			continue
		}

		out.NewItems++
		for _, user := range audience {
			n := notifier.Notification{
				App:           AppID,
				Time:          item.PubTime,
				ObjectType:    AppID,
				ObjectID:      item.ID,
				Subject:       notifier.SubjectAnnounced,
				SubjectParams: []string{item.Title},
				Link:          item.Link,
				UserID:        user.UID,
				ChatID:        user.ChatID,
			}
			// Best-effort per recipient; one failure blocks nobody.
			if err := e.notify.Notify(ctx, n); err != nil {
				out.Failed++
			} else {
				out.Notified++
			}
		}

		// Committing, part 1: the delivered marker is written only after
		// every recipient has been attempted for this item. A crash before
		// this line re-attempts the item next run (at-least-once); after
		// it, the item is never re-delivered.
		if err := e.store.Set(ctx, AppID, item.ID, publishedValue); err != nil {
			e.log.Warn("delivered marker write failed", logx.String("item", item.ID), logx.Err(err))
		}
	}

	// Committing, part 2: the feed watermark advances last, so a crash
	// mid-run leaves the publication re-checkable.
	if err := e.store.Set(ctx, AppID, pubDateKey, f.PubDate); err != nil {
		e.log.Warn("pub_date commit failed", logx.Err(err))
		out.Status = StatusFailed
		out.Reason = "progress_write_failed"
	}
	return out
}

func authReason(err error) string {
	var ae *feed.AuthError
	if errors.As(err, &ae) {
		return string(ae.Kind)
	}
	return "authentication_failed"
}

func parseStoredPubDate(raw string) (time.Time, bool) {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
