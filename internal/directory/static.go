package directory

import "context"

// Static is a config-backed resolver: group id -> fixed member list.
// It stands in for an external user directory.
type Static struct {
	groups map[string][]User
}

func NewStatic(groups map[string][]User) *Static {
	if groups == nil {
		groups = map[string][]User{}
	}
	return &Static{groups: groups}
}

func (s *Static) Members(ctx context.Context, groupID string) ([]User, error) {
	_ = ctx
	members := s.groups[groupID]
	out := make([]User, len(members))
	copy(out, members)
	return out, nil
}
