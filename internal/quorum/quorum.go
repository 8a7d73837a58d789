package quorum

import (
	"fmt"
	"sort"
)

// Group is an immutable set of process ids: self plus all peers.
type Group struct {
	members map[int]struct{}
	sorted  []int
}

// NewGroup builds a group from the given ids. Duplicates are collapsed.
func NewGroup(ids []int) Group {
	g := Group{members: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		if _, exists := g.members[id]; exists {
			continue
		}
		g.members[id] = struct{}{}
		g.sorted = append(g.sorted, id)
	}
	sort.Ints(g.sorted)
	return g
}

// Size returns the number of members.
func (g Group) Size() int {
	return len(g.sorted)
}

// Contains reports whether id is a member.
func (g Group) Contains(id int) bool {
	_, ok := g.members[id]
	return ok
}

// Members returns the member ids in ascending order.
func (g Group) Members() []int {
	return append([]int(nil), g.sorted...)
}

// AckSet records which members acknowledged a single message.
// Not safe for concurrent use; the owner serializes access.
type AckSet struct {
	group Group
	acked map[int]struct{}
}

// NewAckSet creates an empty set for the group.
func NewAckSet(group Group) *AckSet {
	return &AckSet{
		group: group,
		acked: make(map[int]struct{}, group.Size()),
	}
}

// Add records an acknowledgment from id. Returns true if the set changed;
// repeated acknowledgments and non-members leave it untouched.
func (s *AckSet) Add(id int) bool {
	if !s.group.Contains(id) {
		return false
	}
	if s.Has(id) {
		return false
	}
	s.acked[id] = struct{}{}
	return true
}

// Has reports whether id has acknowledged.
func (s *AckSet) Has(id int) bool {
	_, ok := s.acked[id]
	return ok
}

// Count returns the number of distinct members that acknowledged.
func (s *AckSet) Count() int {
	return len(s.acked)
}

// Required returns the number of acknowledgments needed for completion.
func (s *AckSet) Required() int {
	return s.group.Size()
}

// Complete reports whether every member has acknowledged.
func (s *AckSet) Complete() bool {
	return len(s.acked) == s.group.Size()
}

// Acked returns the acknowledging ids in ascending order.
func (s *AckSet) Acked() []int {
	ids := make([]int, 0, len(s.acked))
	for id := range s.acked {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Missing returns the members that have not acknowledged, ascending.
func (s *AckSet) Missing() []int {
	missing := make([]int, 0, s.group.Size()-len(s.acked))
	for _, id := range s.group.Members() {
		if !s.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// String returns a summary such as "2/3 acked=[1 3]".
func (s *AckSet) String() string {
	return fmt.Sprintf("%d/%d acked=%v", s.Count(), s.Required(), s.Acked())
}
