// Package directory resolves notification groups to their member users.
package directory

import (
	"context"
)

// User is one resolvable recipient identity. ChatID is the delivery address
// used by the Telegram sink; zero means "log-only deployments".
type User struct {
	UID    string
	ChatID int64
}

// Resolver looks up group membership. Unknown groups resolve to no members,
// not an error; a directory that is temporarily unavailable returns one.
type Resolver interface {
	Members(ctx context.Context, groupID string) ([]User, error)
}

// Audience returns the union of members across groups, deduplicated by UID.
// Order is first-seen, so fan-out order is stable across runs.
func Audience(ctx context.Context, r Resolver, groups []string) ([]User, error) {
	seen := map[string]bool{}
	var out []User
	for _, gid := range groups {
		members, err := r.Members(ctx, gid)
		if err != nil {
			return nil, err
		}
		for _, u := range members {
			if u.UID == "" || seen[u.UID] {
				continue
			}
			seen[u.UID] = true
			out = append(out, u)
		}
	}
	return out, nil
}
