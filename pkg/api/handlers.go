package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/httputil"
	"github.com/seatlens/seatlens/pkg/snapshot"
)

// AssignResponse acknowledges a license assignment. Exactly one of UserID
// and UserEmail is set, echoing how the user was addressed.
type AssignResponse struct {
	UserID    string `json:"userId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	Assigned  bool   `json:"assigned"`
}

// RemoveResponse acknowledges a license removal
type RemoveResponse struct {
	UserID    string `json:"userId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	Removed   bool   `json:"removed"`
}

// GroupResponse acknowledges a group membership change
type GroupResponse struct {
	UserEmail string `json:"userEmail"`
	Added     bool   `json:"added,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
}

// writeResult writes a query result, flagging data from a truncated feed
func writeResult[T any](w http.ResponseWriter, res *analytics.Result[T]) {
	if res.Partial {
		w.Header().Set(PartialHeader, "true")
	}
	_ = httputil.WriteSuccess(w, res.Data)
}

// getLicenseCounts handles GET /api/copilot/license-counts
func (s *Server) getLicenseCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.licenses.GetLicenseCounts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, counts)
}

// assignLicense handles POST /api/copilot/assign-license/{userId}. The path
// value may be a user id or an email address.
func (s *Server) assignLicense(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}
	if _, err := s.licenses.Assign(r.Context(), userID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, AssignResponse{UserID: userID, Assigned: true})
}

// assignLicenseByEmail handles POST /api/copilot/assign-license-by-email/{userEmail}
func (s *Server) assignLicenseByEmail(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "userEmail")
	if !ok {
		return
	}
	change, err := s.licenses.AssignByEmail(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, AssignResponse{UserEmail: change.Email, Assigned: true})
}

// removeLicense handles POST /api/copilot/remove-license/{userId}
func (s *Server) removeLicense(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}
	if _, err := s.licenses.Remove(r.Context(), userID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, RemoveResponse{UserID: userID, Removed: true})
}

// removeLicenseByEmail handles POST /api/copilot/remove-license-by-email/{userEmail}
func (s *Server) removeLicenseByEmail(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "userEmail")
	if !ok {
		return
	}
	change, err := s.licenses.RemoveByEmail(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, RemoveResponse{UserEmail: change.Email, Removed: true})
}

// getUsageReport handles GET /api/copilot/usage-report
// Query params:
//   - days: keep only users inactive for at least this many days (optional)
func (s *Server) getUsageReport(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.ParseOptionalQueryInt(r, "days")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	res, err := s.usage.GetInactiveUsers(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}

// getUserAnalytics handles GET /api/copilot/user-analytics/{userId}
func (s *Server) getUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}

	res, err := s.usage.GetUserAnalytics(r.Context(), userID, days)
	if errors.Is(err, analytics.ErrNotFound) {
		httputil.WriteNotFoundError(w, fmt.Sprintf("No usage data found for user %s.", userID))
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}

// getAllUsersAnalytics handles GET /api/copilot/all-users-analytics
func (s *Server) getAllUsersAnalytics(w http.ResponseWriter, r *http.Request) {
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	res, err := s.usage.GetAllUsersAnalytics(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}

// getUsageSummary handles GET /api/copilot/usage-summary
func (s *Server) getUsageSummary(w http.ResponseWriter, r *http.Request) {
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	res, err := s.usage.GetUsageSummary(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}

// getLatestSummary handles GET /api/copilot/usage-summary/latest
// addUserToGroup handles POST /api/copilot/add-user-to-group/{userEmail}
func (s *Server) addUserToGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		httputil.WriteServiceUnavailable(w, msgGroupsDisabled)
		return
	}
	email, ok := httputil.ParsePathStringOrError(w, r, "userEmail")
	if !ok {
		return
	}
	change, err := s.groups.AddUserToGroup(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, GroupResponse{UserEmail: change.Email, Added: true})
}

// removeUserFromGroup handles POST /api/copilot/remove-user-from-group/{userEmail}
func (s *Server) removeUserFromGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		httputil.WriteServiceUnavailable(w, msgGroupsDisabled)
		return
	}
	email, ok := httputil.ParsePathStringOrError(w, r, "userEmail")
	if !ok {
		return
	}
	change, err := s.groups.RemoveUserFromGroup(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, GroupResponse{UserEmail: change.Email, Removed: true})
}

// Returns the snapshot stored by the reporter without querying the directory.
func (s *Server) getLatestSummary(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		httputil.WriteServiceUnavailable(w, "Summary snapshots are not enabled.")
		return
	}
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	if days < 1 {
		httputil.WriteBadRequest(w, fmt.Sprintf("days must be at least 1, got %d", days))
		return
	}

	snap, err := s.snapshots.Latest(r.Context(), days)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		httputil.WriteNotFoundError(w, fmt.Sprintf("No summary snapshot available for %d days.", days))
		return
	}
	if err != nil {
		s.requestLogger(r).WithError(err).Error("Reading summary snapshot failed")
		httputil.WriteServiceUnavailable(w, "Summary snapshots are unavailable.")
		return
	}
	if snap.Partial {
		w.Header().Set(PartialHeader, "true")
	}
	_ = httputil.WriteSuccess(w, snap)
}

// getTopUsers handles GET /api/copilot/top-users
// Query params:
//   - topCount: number of users, default 10
//   - days: activity window, default 30
func (s *Server) getTopUsers(w http.ResponseWriter, r *http.Request) {
	topCount, ok := httputil.ParseQueryIntOrError(w, r, "topCount", s.cfg.DefaultTop)
	if !ok {
		return
	}
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	res, err := s.usage.GetTopUsers(r.Context(), topCount, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}

// getDepartmentAnalytics handles GET /api/copilot/department-analytics/{department}
func (s *Server) getDepartmentAnalytics(w http.ResponseWriter, r *http.Request) {
	department, ok := httputil.ParsePathStringOrError(w, r, "department")
	if !ok {
		return
	}
	days, ok := httputil.ParseQueryIntOrError(w, r, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	res, err := s.usage.GetUsersByDepartment(r.Context(), department, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, res)
}
