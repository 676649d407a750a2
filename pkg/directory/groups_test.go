package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGroupMember(t *testing.T) {
	var ref memberReference
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/groups/g1/members/$ref", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ref))
		w.WriteHeader(http.StatusNoContent)
	}), 0)

	require.NoError(t, c.AddGroupMember(context.Background(), "g1", "u1"))
	assert.Equal(t, c.baseURL+"/v1.0/directoryObjects/u1", ref.ODataID)
}

func TestAddGroupMember_AlreadyMember(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]string{
				"code":    "Request_BadRequest",
				"message": "One or more added object references already exist for the following modified properties: 'members'.",
			},
		})
	}), 0)

	assert.NoError(t, c.AddGroupMember(context.Background(), "g1", "u1"))
}

func TestAddGroupMember_OtherBadRequest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]string{"code": "Request_BadRequest", "message": "Invalid object identifier 'bad id'."},
		})
	}), 0)

	err := c.AddGroupMember(context.Background(), "g1", "bad id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrMemberNotFound)
}

func TestRemoveGroupMember(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/v1.0/groups/g1/members/u1/$ref":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": map[string]string{"code": "Request_ResourceNotFound", "message": "does not exist"},
			})
		}
	}), 0)
	ctx := context.Background()

	require.NoError(t, c.RemoveGroupMember(ctx, "g1", "u1"))

	err := c.RemoveGroupMember(ctx, "g1", "u2")
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAddGroupMember_UnknownGroup(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), 0)

	err := c.AddGroupMember(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
