package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrMemberNotFound is returned when Graph knows neither the group nor the
// membership being changed
var ErrMemberNotFound = errors.New("directory group or member not found")

type memberReference struct {
	ODataID string `json:"@odata.id"`
}

// AddGroupMember adds the user to the group. Adding an existing member
// succeeds.
func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) error {
	endpoint := c.endpoint("/groups/"+url.PathEscape(groupID)+"/members/$ref", nil)
	body := memberReference{ODataID: c.endpoint("/directoryObjects/"+url.PathEscape(userID), nil)}

	err := c.do(ctx, "add_group_member", http.MethodPost, endpoint, body, nil)
	if isAlreadyMember(err) {
		c.logger.WithFields(map[string]interface{}{
			"group_id": groupID,
			"user_id":  userID,
		}).Debug("User already in group")
		return nil
	}
	return c.membershipResult("add_group_member", groupID, userID, err)
}

// RemoveGroupMember removes the user from the group. Removing a user who is
// not a member returns ErrMemberNotFound.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	endpoint := c.endpoint("/groups/"+url.PathEscape(groupID)+"/members/"+url.PathEscape(userID)+"/$ref", nil)
	err := c.do(ctx, "remove_group_member", http.MethodDelete, endpoint, nil, nil)
	return c.membershipResult("remove_group_member", groupID, userID, err)
}

func (c *Client) membershipResult(operation, groupID, userID string, err error) error {
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("group %s, user %s: %w", groupID, userID, ErrMemberNotFound)
		}
		return fmt.Errorf("%s for user %s: %w", strings.ReplaceAll(operation, "_", " "), userID, err)
	}
	c.logger.WithFields(map[string]interface{}{
		"operation": operation,
		"group_id":  groupID,
		"user_id":   userID,
	}).Info("Group membership updated")
	return nil
}

// isAlreadyMember matches Graph's answer to adding a duplicate reference
func isAlreadyMember(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(ge.Message), "already exist")
}
