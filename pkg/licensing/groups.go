package licensing

import (
	"context"
	"errors"
	"fmt"

	"github.com/seatlens/seatlens/pkg/directory"
	"github.com/seatlens/seatlens/pkg/observability"
)

// ErrMembershipNotFound is returned when either the user or the managed
// group is unknown to the directory
var ErrMembershipNotFound = errors.New("user or group not found")

var _ GroupDirectory = (*directory.Client)(nil)

// GroupDirectory is the subset of the directory client the group service uses
type GroupDirectory interface {
	FindUserByPrincipalName(ctx context.Context, upn string) (*directory.User, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}

// GroupService manages membership of one directory group, typically the
// group that license policies are attached to
type GroupService struct {
	dir     GroupDirectory
	groupID string
	logger  *observability.Logger
}

// NewGroupService creates a group service for groupID
func NewGroupService(dir GroupDirectory, groupID string, logger *observability.Logger) *GroupService {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &GroupService{dir: dir, groupID: groupID, logger: logger}
}

// AddUserToGroup adds the user with the given principal name to the group
func (g *GroupService) AddUserToGroup(ctx context.Context, email string) (*Change, error) {
	return g.apply(ctx, email, true)
}

// RemoveUserFromGroup removes the user with the given principal name from
// the group
func (g *GroupService) RemoveUserFromGroup(ctx context.Context, email string) (*Change, error) {
	return g.apply(ctx, email, false)
}

func (g *GroupService) apply(ctx context.Context, email string, add bool) (*Change, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is empty", ErrInvalidKey)
	}
	if g.groupID == "" {
		return nil, fmt.Errorf("%w: no group configured", ErrMembershipNotFound)
	}

	user, err := g.dir.FindUserByPrincipalName(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMembershipNotFound, email)
		}
		return nil, upstream(ctx, "resolving user", err)
	}

	action := "add"
	mutate := g.dir.AddGroupMember
	if !add {
		action = "remove"
		mutate = g.dir.RemoveGroupMember
	}
	if err := mutate(ctx, g.groupID, user.ID); err != nil {
		if errors.Is(err, directory.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: %s in group %s", ErrMembershipNotFound, email, g.groupID)
		}
		return nil, upstream(ctx, action+" group member", err)
	}

	g.logger.WithFields(map[string]interface{}{
		"action":     action,
		"user_id":    user.ID,
		"group_id":   g.groupID,
		"request_id": observability.GetRequestID(ctx),
	}).Info("Group membership changed")
	return &Change{UserID: user.ID, Email: email}, nil
}
