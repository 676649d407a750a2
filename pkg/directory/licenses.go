package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SubscribedSku is a tenant license subscription
type SubscribedSku struct {
	SkuID         string       `json:"skuId"`
	SkuPartNumber string       `json:"skuPartNumber"`
	ConsumedUnits int          `json:"consumedUnits"`
	PrepaidUnits  PrepaidUnits `json:"prepaidUnits"`
}

// PrepaidUnits counts purchased seats by state
type PrepaidUnits struct {
	Enabled   int `json:"enabled"`
	Suspended int `json:"suspended"`
	Warning   int `json:"warning"`
}

type assignedLicense struct {
	SkuID         string   `json:"skuId"`
	DisabledPlans []string `json:"disabledPlans"`
}

type assignLicenseRequest struct {
	AddLicenses    []assignedLicense `json:"addLicenses"`
	RemoveLicenses []string          `json:"removeLicenses"`
}

// AssignLicense grants skuID to the user
func (c *Client) AssignLicense(ctx context.Context, userID, skuID string) error {
	body := assignLicenseRequest{
		AddLicenses:    []assignedLicense{{SkuID: skuID, DisabledPlans: []string{}}},
		RemoveLicenses: []string{},
	}
	return c.postAssignLicense(ctx, "assign_license", userID, body)
}

// RemoveLicense revokes skuID from the user
func (c *Client) RemoveLicense(ctx context.Context, userID, skuID string) error {
	body := assignLicenseRequest{
		AddLicenses:    []assignedLicense{},
		RemoveLicenses: []string{skuID},
	}
	return c.postAssignLicense(ctx, "remove_license", userID, body)
}

func (c *Client) postAssignLicense(ctx context.Context, operation, userID string, body assignLicenseRequest) error {
	endpoint := c.endpoint("/users/"+url.PathEscape(userID)+"/assignLicense", nil)
	if err := c.do(ctx, operation, http.MethodPost, endpoint, body, nil); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
		}
		return fmt.Errorf("%s for user %s: %w", strings.ReplaceAll(operation, "_", " "), userID, err)
	}
	c.logger.WithFields(map[string]interface{}{
		"operation": operation,
		"user_id":   userID,
	}).Info("License updated")
	return nil
}

// GetSubscribedSku returns the tenant subscription for skuID, or nil when the
// tenant has none. SKU ids compare case-insensitively.
func (c *Client) GetSubscribedSku(ctx context.Context, skuID string) (*SubscribedSku, error) {
	var page struct {
		Value []SubscribedSku `json:"value"`
	}
	if err := c.do(ctx, "subscribed_skus", http.MethodGet, c.endpoint("/subscribedSkus", nil), nil, &page); err != nil {
		return nil, fmt.Errorf("listing subscribed SKUs: %w", err)
	}
	for i := range page.Value {
		if strings.EqualFold(page.Value[i].SkuID, skuID) {
			return &page.Value[i], nil
		}
	}
	return nil, nil
}
