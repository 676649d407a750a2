package licensing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatlens/seatlens/pkg/directory"
	"github.com/seatlens/seatlens/pkg/observability"
)

const sku = "639dec6b-bb19-468b-871c-c5c441c4b0cb"

type fakeDirectory struct {
	users    map[string]string // lower-cased upn -> id
	known    map[string]bool   // ids the directory accepts
	sku      *directory.SubscribedSku
	err      error
	assigned []string
	removed  []string
	lookups  []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[string]string{"ana@contoso.com": "u-ana"},
		known: map[string]bool{"u-ana": true, "u-ben": true},
	}
}

func (f *fakeDirectory) FindUserByPrincipalName(ctx context.Context, upn string) (*directory.User, error) {
	f.lookups = append(f.lookups, upn)
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.users[strings.ToLower(upn)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", upn, directory.ErrUserNotFound)
	}
	return &directory.User{ID: id, UserPrincipalName: upn}, nil
}

func (f *fakeDirectory) AssignLicense(ctx context.Context, userID, skuID string) error {
	if err := f.check(userID); err != nil {
		return err
	}
	f.assigned = append(f.assigned, userID+"/"+skuID)
	return nil
}

func (f *fakeDirectory) RemoveLicense(ctx context.Context, userID, skuID string) error {
	if err := f.check(userID); err != nil {
		return err
	}
	f.removed = append(f.removed, userID+"/"+skuID)
	return nil
}

func (f *fakeDirectory) check(userID string) error {
	if f.err != nil {
		return f.err
	}
	if !f.known[userID] {
		return fmt.Errorf("user %s: %w", userID, directory.ErrUserNotFound)
	}
	return nil
}

func (f *fakeDirectory) GetSubscribedSku(ctx context.Context, skuID string) (*directory.SubscribedSku, error) {
	return f.sku, f.err
}

func newTestService(dir Directory) (*Service, *observability.Metrics) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	return NewService(dir, sku, logger, metrics), metrics
}

func TestGetLicenseCounts(t *testing.T) {
	dir := newFakeDirectory()
	dir.sku = &directory.SubscribedSku{
		SkuID:         sku,
		ConsumedUnits: 18,
		PrepaidUnits:  directory.PrepaidUnits{Enabled: 25, Suspended: 3},
	}
	svc, metrics := newTestService(dir)

	counts, err := svc.GetLicenseCounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, LicenseCounts{TotalLicenses: 25, AssignedLicenses: 18, AvailableLicenses: 7}, counts)
	assert.Equal(t, 18.0, testutil.ToFloat64(metrics.LicensedUsers))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.LicenseSeatsAvailable))
}

func TestGetLicenseCounts_SkuAbsent(t *testing.T) {
	svc, _ := newTestService(newFakeDirectory())

	counts, err := svc.GetLicenseCounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, LicenseCounts{}, counts)
}

func TestGetLicenseCounts_Upstream(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = fmt.Errorf("%w: 503", directory.ErrUpstream)
	svc, _ := newTestService(dir)

	_, err := svc.GetLicenseCounts(context.Background())

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantID   string
		wantMail string
		lookups  int
	}{
		{name: "by id", key: "u-ben", wantID: "u-ben"},
		{name: "by email", key: "ana@contoso.com", wantID: "u-ana", wantMail: "ana@contoso.com", lookups: 1},
		{name: "email with zero-width characters", key: " \u200bana@contoso.com\u200d ", wantID: "u-ana", wantMail: "ana@contoso.com", lookups: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory()
			svc, _ := newTestService(dir)

			change, err := svc.Assign(context.Background(), tt.key)

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, change.UserID)
			assert.Equal(t, tt.wantMail, change.Email)
			assert.Equal(t, []string{tt.wantID + "/" + sku}, dir.assigned)
			assert.Len(t, dir.lookups, tt.lookups)
		})
	}
}

func TestAssignByEmail_NotFound(t *testing.T) {
	svc, _ := newTestService(newFakeDirectory())

	_, err := svc.AssignByEmail(context.Background(), "ghost@contoso.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, "User with email ghost@contoso.com not found.", err.Error())
}

func TestRemove_UnknownID(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir)

	_, err := svc.Remove(context.Background(), "u-missing")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.False(t, nf.ByEmail)
	assert.Equal(t, "User with id u-missing not found.", err.Error())
	assert.Empty(t, dir.removed)
}

func TestRemoveByEmail(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir)

	change, err := svc.RemoveByEmail(context.Background(), "ANA@contoso.com")

	require.NoError(t, err)
	assert.Equal(t, "u-ana", change.UserID)
	assert.Equal(t, []string{"u-ana/" + sku}, dir.removed)
}

func TestAssign_EmptyKey(t *testing.T) {
	svc, _ := newTestService(newFakeDirectory())

	_, err := svc.Assign(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.AssignByEmail(context.Background(), "\u200b")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAssign_Upstream(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = fmt.Errorf("%w: circuit breaker is open", directory.ErrUpstream)
	svc, _ := newTestService(dir)

	_, err := svc.Assign(context.Background(), "u-ana")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = svc.Assign(context.Background(), "ana@contoso.com")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestAssign_CanceledContext(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = context.Canceled
	svc, _ := newTestService(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Assign(ctx, "u-ana")

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@contoso.com", NormalizeEmail("\u200cana@contoso.com\u200b\n"))
	assert.Equal(t, "", NormalizeEmail("\u200b\u200c\u200d"))
}
