package licensing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seatlens/seatlens/pkg/directory"
	"github.com/seatlens/seatlens/pkg/observability"
)

var (
	// ErrUserNotFound is returned when the directory has no user for the key
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidKey is returned for an empty user id or email
	ErrInvalidKey = errors.New("invalid user key")
	// ErrUpstreamUnavailable wraps directory failures
	ErrUpstreamUnavailable = errors.New("directory unavailable")
)

// NotFoundError names the key that could not be resolved
type NotFoundError struct {
	Key     string
	ByEmail bool
}

func (e *NotFoundError) Error() string {
	if e.ByEmail {
		return fmt.Sprintf("User with email %s not found.", e.Key)
	}
	return fmt.Sprintf("User with id %s not found.", e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrUserNotFound }

var _ Directory = (*directory.Client)(nil)

// Directory is the subset of the directory client the license service uses
type Directory interface {
	FindUserByPrincipalName(ctx context.Context, upn string) (*directory.User, error)
	AssignLicense(ctx context.Context, userID, skuID string) error
	RemoveLicense(ctx context.Context, userID, skuID string) error
	GetSubscribedSku(ctx context.Context, skuID string) (*directory.SubscribedSku, error)
}

// LicenseCounts summarizes the tenant's seats for the managed SKU
type LicenseCounts struct {
	TotalLicenses     int `json:"totalLicenses"`
	AssignedLicenses  int `json:"usedLicenses"`
	AvailableLicenses int `json:"availableLicenses"`
}

// Change describes a completed license assignment or removal
type Change struct {
	UserID string
	// Email is set when the user was resolved by principal name
	Email string
}

// Service manages seats of one license SKU
type Service struct {
	dir     Directory
	skuID   string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates a license service for skuID
func NewService(dir Directory, skuID string, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		dir:     dir,
		skuID:   skuID,
		logger:  logger,
		metrics: metrics,
	}
}

// GetLicenseCounts returns enabled, consumed and remaining seats. A tenant
// without the SKU reports zero everywhere.
func (s *Service) GetLicenseCounts(ctx context.Context) (LicenseCounts, error) {
	sku, err := s.dir.GetSubscribedSku(ctx, s.skuID)
	if err != nil {
		return LicenseCounts{}, upstream(ctx, "reading license counts", err)
	}

	var counts LicenseCounts
	if sku != nil {
		counts = LicenseCounts{
			TotalLicenses:     sku.PrepaidUnits.Enabled,
			AssignedLicenses:  sku.ConsumedUnits,
			AvailableLicenses: sku.PrepaidUnits.Enabled - sku.ConsumedUnits,
		}
	} else {
		s.logger.WithField("sku", s.skuID).Warn("License SKU not found in tenant subscriptions")
	}

	if s.metrics != nil {
		s.metrics.LicensedUsers.Set(float64(counts.AssignedLicenses))
		s.metrics.LicenseSeatsAvailable.Set(float64(counts.AvailableLicenses))
	}
	return counts, nil
}

// Assign grants the license. A key containing "@" is resolved as a user
// principal name, anything else is used as the user id.
func (s *Service) Assign(ctx context.Context, key string) (*Change, error) {
	return s.apply(ctx, key, strings.Contains(key, "@"), true)
}

// AssignByEmail grants the license to the user with the given principal name
func (s *Service) AssignByEmail(ctx context.Context, email string) (*Change, error) {
	return s.apply(ctx, email, true, true)
}

// Remove revokes the license. Keys are interpreted as in Assign.
func (s *Service) Remove(ctx context.Context, key string) (*Change, error) {
	return s.apply(ctx, key, strings.Contains(key, "@"), false)
}

// RemoveByEmail revokes the license from the user with the given principal name
func (s *Service) RemoveByEmail(ctx context.Context, email string) (*Change, error) {
	return s.apply(ctx, email, true, false)
}

func (s *Service) apply(ctx context.Context, key string, byEmail, assign bool) (*Change, error) {
	change, err := s.resolve(ctx, key, byEmail)
	if err != nil {
		return nil, err
	}

	action := "assign"
	mutate := s.dir.AssignLicense
	if !assign {
		action = "remove"
		mutate = s.dir.RemoveLicense
	}

	if err := mutate(ctx, change.UserID, s.skuID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, &NotFoundError{Key: notFoundKey(key, change), ByEmail: byEmail}
		}
		return nil, upstream(ctx, action+" license", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"action":     action,
		"user_id":    change.UserID,
		"sku":        s.skuID,
		"request_id": observability.GetRequestID(ctx),
	}).Info("License seat changed")
	return change, nil
}

// resolve maps a key to a directory user id
func (s *Service) resolve(ctx context.Context, key string, byEmail bool) (*Change, error) {
	if !byEmail {
		id := strings.TrimSpace(key)
		if id == "" {
			return nil, fmt.Errorf("%w: user id is empty", ErrInvalidKey)
		}
		return &Change{UserID: id}, nil
	}

	email := NormalizeEmail(key)
	if email == "" {
		return nil, fmt.Errorf("%w: email is empty", ErrInvalidKey)
	}
	user, err := s.dir.FindUserByPrincipalName(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, &NotFoundError{Key: email, ByEmail: true}
		}
		return nil, upstream(ctx, "resolving user", err)
	}
	return &Change{UserID: user.ID, Email: email}, nil
}

func notFoundKey(key string, change *Change) string {
	if change.Email != "" {
		return change.Email
	}
	return strings.TrimSpace(key)
}

// upstream keeps context errors as they are and marks everything else as a
// directory failure
func upstream(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, action, err)
}

// zeroWidth lists the invisible characters pasted addresses often carry
var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "")

// NormalizeEmail strips zero-width characters and surrounding whitespace
func NormalizeEmail(email string) string {
	return strings.TrimSpace(zeroWidth.Replace(email))
}
