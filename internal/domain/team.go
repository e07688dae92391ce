package domain

import "time"

// Team is a named group inside a workspace. LeaderID is always one of MemberIDs.
type Team struct {
	ID          string
	WorkspaceID string
	Name        string
	Description string
	LeaderID    string
	MemberIDs   []string
	CreatedAt   time.Time
}

// HasMember reports whether userID belongs to the team.
func (t Team) HasMember(userID string) bool {
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID    string
	UserID    string
	CreatedAt time.Time
}
