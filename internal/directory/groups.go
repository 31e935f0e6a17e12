package directory

import (
	"context"

	"announced/internal/settings"
)

// Settings keys for the configured notification group list.
//
// The legacy namespace is kept for deployments that configured groups back
// when update notifications owned that setting.
const (
	GroupsKey         = "notification_groups"
	legacyNamespace   = "updatenotification"
	legacyGroupsKey   = "notify_groups"
	defaultAdminGroup = "admin"
)

// NotificationGroups decodes the configured group list from the settings
// store. Fallback chain: our namespace, then the legacy key, then a single
// admin group. A present-but-unparseable value yields no groups (fail
// closed: better to notify nobody than everybody).
func NotificationGroups(ctx context.Context, store settings.Store, namespace string) []string {
	groups, present := settings.GetJSONStrings(ctx, store, namespace, GroupsKey)
	if !present {
		groups, present = settings.GetJSONStrings(ctx, store, legacyNamespace, legacyGroupsKey)
	}
	if !present {
		return []string{defaultAdminGroup}
	}
	return groups
}
