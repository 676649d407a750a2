package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/seatlens/seatlens/pkg/analytics"
)

var _ analytics.LicensedUserLister = (*Client)(nil)

// maxPageSize is the largest $top Graph accepts for users
const maxPageSize = 999

// User is the subset of a Graph user this service reads
type User struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type userPage struct {
	Value    []User `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// ListLicensedUsers returns every user holding skuID, following
// @odata.nextLink until the listing is exhausted
func (c *Client) ListLicensedUsers(ctx context.Context, skuID string) ([]analytics.LicensedUser, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("assignedLicenses/any(x:x/skuId eq %s)", skuID))
	query.Set("$select", "id,userPrincipalName")
	query.Set("$top", fmt.Sprint(maxPageSize))

	var users []analytics.LicensedUser
	next := c.endpoint("/users", query)
	pages := 0
	for next != "" {
		var page userPage
		if err := c.do(ctx, "list_licensed_users", http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("listing users with license %s (page %d): %w", skuID, pages+1, err)
		}
		for _, u := range page.Value {
			users = append(users, analytics.LicensedUser{ID: u.ID, UserPrincipalName: u.UserPrincipalName})
		}
		pages++
		next = page.NextLink
	}

	c.logger.WithFields(map[string]interface{}{
		"sku":   skuID,
		"users": len(users),
		"pages": pages,
	}).Debug("Listed licensed users")
	return users, nil
}

// FindUserByPrincipalName resolves a user principal name to a user. Successful
// lookups are cached; misses are not.
func (c *Client) FindUserByPrincipalName(ctx context.Context, upn string) (*User, error) {
	key := strings.ToLower(upn)
	if c.lookups != nil {
		if u, ok := c.lookups.Get(key); ok {
			c.recordCache(true)
			return &u, nil
		}
		c.recordCache(false)
	}

	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("userPrincipalName eq '%s'", escapeODataString(upn)))
	query.Set("$select", "id,userPrincipalName")

	var page userPage
	if err := c.do(ctx, "find_user", http.MethodGet, c.endpoint("/users", query), nil, &page); err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", upn, err)
	}
	if len(page.Value) == 0 || page.Value[0].ID == "" {
		return nil, fmt.Errorf("user %s: %w", upn, ErrUserNotFound)
	}

	u := page.Value[0]
	if c.lookups != nil {
		c.lookups.Add(key, u)
	}
	return &u, nil
}

func (c *Client) recordCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues("user_lookup").Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues("user_lookup").Inc()
	}
}

// escapeODataString doubles single quotes for use inside an OData string literal
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
