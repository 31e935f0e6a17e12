package notifier

import (
	"context"

	logx "announced/pkg/logx"
)

// LogSink renders notifications to the log. Used when no delivery
// transport is configured.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Send(ctx context.Context, n Notification) error {
	_ = ctx
	title := ""
	if len(n.SubjectParams) > 0 {
		title = n.SubjectParams[0]
	}
	s.Log.Info("announcement",
		logx.String("user", n.UserID),
		logx.String("title", title),
		logx.String("link", n.Link),
		logx.String("object", n.ObjectID))
	return nil
}
