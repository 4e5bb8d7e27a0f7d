package core

import "context"

// RosterEntry describes one member of a Teams team or channel.
type RosterEntry struct {
	AADObjectID string `json:"aadObjectId"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
}

// RosterPage is a single page of a paginated member listing.
type RosterPage struct {
	Members []RosterEntry

	// ContinuationToken is empty on the last page.
	ContinuationToken string
}

// RosterSource fetches team members page by page.
type RosterSource interface {
	GetPagedMembers(ctx context.Context, serviceURL, teamID string, pageSize int, continuationToken string) (*RosterPage, error)
}

// FindByEmail returns the first entry whose email matches exactly.
func FindByEmail(entries []RosterEntry, email string) (RosterEntry, bool) {
	for _, e := range entries {
		if e.Email == email {
			return e, true
		}
	}
	return RosterEntry{}, false
}

// FindByAADObjectID returns the entry with the given Azure AD object id.
func FindByAADObjectID(entries []RosterEntry, id string) (RosterEntry, bool) {
	for _, e := range entries {
		if e.AADObjectID == id {
			return e, true
		}
	}
	return RosterEntry{}, false
}
