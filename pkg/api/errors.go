package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/httputil"
	"github.com/seatlens/seatlens/pkg/licensing"
	"github.com/seatlens/seatlens/pkg/observability"
)

const (
	msgUpstream = "The directory service is unavailable. Try again later."
	msgTimeout  = "The directory service did not respond in time."
	msgInternal = "internal server error"

	msgMembershipNotFound = "User or group not found."
	msgGroupsDisabled     = "Group management is not configured."
)

func (s *Server) requestLogger(r *http.Request) *observability.Logger {
	if id := observability.GetRequestID(r.Context()); id != "" {
		return s.logger.WithField("request_id", id)
	}
	return s.logger
}

// writeServiceError maps service errors onto status codes. Internal detail
// is logged, never returned.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r).WithError(err).WithField("path", r.URL.Path)

	var notFound *licensing.NotFoundError
	switch {
	case errors.Is(err, analytics.ErrInvalidArgument), errors.Is(err, licensing.ErrInvalidKey):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &notFound):
		httputil.WriteNotFoundError(w, notFound.Error())
	case errors.Is(err, licensing.ErrMembershipNotFound):
		httputil.WriteNotFoundError(w, msgMembershipNotFound)
	case errors.Is(err, analytics.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, analytics.ErrUpstreamUnavailable), errors.Is(err, licensing.ErrUpstreamUnavailable):
		logger.Warn("Directory request failed")
		httputil.WriteBadGateway(w, msgUpstream)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Directory request timed out")
		httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, msgTimeout)
	case errors.Is(err, context.Canceled):
		logger.Debug("Request canceled by client")
	default:
		logger.Error("Request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
