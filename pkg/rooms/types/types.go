package types

import "sort"

// Location is a member's last reported position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	TS  int64   `json:"ts"`
}

// Status is a member's team/role/health triple.
type Status struct {
	Team   string  `json:"team,omitempty"`
	Role   string  `json:"role,omitempty"`
	Health float64 `json:"health"`
}

// AbilityEvent is one entry in a member's ability activation log.
type AbilityEvent struct {
	AbilityID string `json:"abilityId"`
	TS        int64  `json:"ts"`
}

// Setting is one room-scoped key/value pair. Settings are an ordered
// list, not a map, and are replaced wholesale.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Member is one durable room participant. Token is the member's
// mutation secret: it is part of the persisted record but must never
// appear in an externally visible view.
type Member struct {
	UserID    string         `json:"userId"`
	Name      string         `json:"name,omitempty"`
	Token     string         `json:"token"`
	Location  *Location      `json:"location,omitempty"`
	Status    Status         `json:"status"`
	Abilities []AbilityEvent `json:"abilities,omitempty"`
	UpdatedAt int64          `json:"updatedAt"`
}

// View returns the externally visible projection of the member, with
// the token stripped.
func (m *Member) View() MemberView {
	return MemberView{
		UserID:    m.UserID,
		Name:      m.Name,
		Location:  m.Location,
		Status:    m.Status,
		Abilities: m.Abilities,
		UpdatedAt: m.UpdatedAt,
	}
}

// MemberView is the token-free public projection of a Member.
type MemberView struct {
	UserID    string         `json:"userId"`
	Name      string         `json:"name,omitempty"`
	Location  *Location      `json:"location,omitempty"`
	Status    Status         `json:"status"`
	Abilities []AbilityEvent `json:"abilities,omitempty"`
	UpdatedAt int64          `json:"updatedAt"`
}

// Snapshot is the full point-in-time public view of a room.
type Snapshot struct {
	Members  []MemberView `json:"members"`
	Settings []Setting    `json:"settings"`
}

// SortMembers orders member views by userId for stable output.
func SortMembers(members []MemberView) {
	sort.Slice(members, func(i, j int) bool {
		return members[i].UserID < members[j].UserID
	})
}

// RoomRecord is the durable representation of one room: the member
// directory, the settings list, and the armed expiry deadline in Unix
// milliseconds.
type RoomRecord struct {
	Members  map[string]*Member `json:"members"`
	Settings []Setting          `json:"settings"`
	Deadline int64              `json:"deadline"`
}
