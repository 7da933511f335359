package entity

import (
	"errors"
	"strings"
)

// ErrUnauthorized is returned for any request made by an unrecognized principal
var ErrUnauthorized = errors.New("unauthorized")

// DefaultUserID is the single principal the system recognizes out of the box
const DefaultUserID = "u1"

// Principal identifies whose records a request acts on
type Principal struct {
	UserID string
}

// Authorizer decides whether a principal may act
type Authorizer interface {
	Authorize(p Principal) error
}

// AllowList authorizes a fixed set of user ids
type AllowList struct {
	users map[string]bool
}

// NewAllowList creates an authorizer for the given users. An empty list
// recognizes DefaultUserID only.
func NewAllowList(userIDs ...string) *AllowList {
	users := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			users[id] = true
		}
	}
	if len(users) == 0 {
		users[DefaultUserID] = true
	}
	return &AllowList{users: users}
}

// Authorize returns ErrUnauthorized unless the principal is on the list
func (a *AllowList) Authorize(p Principal) error {
	if !a.users[p.UserID] {
		return ErrUnauthorized
	}
	return nil
}
