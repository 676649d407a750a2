package analytics

import (
	"context"
	"fmt"
	"strings"
)

// LicensedUserLister lists the directory users holding a license
type LicensedUserLister interface {
	ListLicensedUsers(ctx context.Context, skuID string) ([]LicensedUser, error)
}

// LicensedUserIndex is a case-insensitive principal name lookup over the
// users holding the tracked license. It is built once per query.
type LicensedUserIndex struct {
	users  []LicensedUser
	byName map[string][]int
}

// NewLicensedUserIndex indexes users by lower-cased principal name
func NewLicensedUserIndex(users []LicensedUser) *LicensedUserIndex {
	idx := &LicensedUserIndex{
		users:  users,
		byName: make(map[string][]int, len(users)),
	}
	for i, u := range users {
		if u.UserPrincipalName == "" {
			continue
		}
		key := strings.ToLower(u.UserPrincipalName)
		idx.byName[key] = append(idx.byName[key], i)
	}
	return idx
}

// LoadLicensedUsers lists the users holding skuID and indexes them.
// Directory failures are wrapped with ErrUpstreamUnavailable.
func LoadLicensedUsers(ctx context.Context, lister LicensedUserLister, skuID string) (*LicensedUserIndex, error) {
	users, err := lister.ListLicensedUsers(ctx, skuID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: listing licensed users: %v", ErrUpstreamUnavailable, err)
	}
	return NewLicensedUserIndex(users), nil
}

// Lookup finds the licensed user for a principal name, ignoring case.
// When several licensed users differ only in case, the exact match wins.
func (i *LicensedUserIndex) Lookup(principalName string) (LicensedUser, bool) {
	if principalName == "" {
		return LicensedUser{}, false
	}
	matches := i.byName[strings.ToLower(principalName)]
	if len(matches) == 0 {
		return LicensedUser{}, false
	}
	for _, m := range matches {
		if i.users[m].UserPrincipalName == principalName {
			return i.users[m], true
		}
	}
	return i.users[matches[0]], true
}

// Len returns the number of indexed users
func (i *LicensedUserIndex) Len() int {
	return len(i.users)
}
