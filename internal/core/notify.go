package core

import (
	"fmt"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/notify"
	"github.com/kamiai/kamiai/internal/observability/metrics"
	"github.com/kamiai/kamiai/internal/session"
)

// newNotifier returns nil when notifications are off. override replaces the
// shoutrrr provider built from the settings.
func newNotifier(s conf.NotificationSettings, override []notify.Provider) (*notify.Dispatcher, error) {
	if override != nil {
		return notify.NewDispatcher(s.Timeout, override...), nil
	}
	if !s.Enabled {
		return nil, nil
	}
	p := notify.NewShoutrrrProvider("shoutrrr", s.URLs, s.Types, s.Timeout)
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}
	return notify.NewDispatcher(s.Timeout, p), nil
}

var backupOpTitles = map[string]string{
	metrics.OpBackupLocal: "Backup",
	metrics.OpBackupSync:  "Cloud sync",
	metrics.OpRestore:     "Restore",
}

func backupNotification(r backup.Result) *notify.Notification {
	title := backupOpTitles[r.Op]
	switch {
	case r.Err != nil:
		return &notify.Notification{
			Type:    notify.TypeError,
			Title:   title + " failed",
			Message: r.Err.Error(),
		}
	case r.Op == metrics.OpRestore:
		return &notify.Notification{
			Type:    notify.TypeInfo,
			Title:   "Backup restored",
			Message: "Models, samples and settings were replaced from the bundle.",
		}
	default:
		return &notify.Notification{
			Type:    notify.TypeInfo,
			Title:   title + " complete",
			Message: fmt.Sprintf("%s stored on %s (%d bytes)", r.Record.Filename, r.Record.Provider, r.Record.Size),
		}
	}
}

func sessionNotification(st session.State) *notify.Notification {
	if st.Status != session.StatusFailed {
		return nil
	}
	return &notify.Notification{
		Type:    notify.TypeError,
		Title:   fmt.Sprintf("%s model failed to load", st.ModuleType),
		Message: st.Error,
	}
}
