package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListSessions returns the caller's active sessions.
func (c *Client) ListSessions(ctx context.Context) (*ListSessionsResponse, error) {
	return call[ListSessionsResponse](ctx, c, http.MethodGet, APIPrefix+"/sessions", nil, http.StatusOK)
}

// RevokeSession signs out one of the caller's sessions.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, APIPrefix+"/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ListUserSessions returns another user's sessions. It needs a role whose
// scope covers the target user.
func (c *Client) ListUserSessions(ctx context.Context, userID string) (*ListSessionsResponse, error) {
	return call[ListSessionsResponse](ctx, c, http.MethodGet, APIPrefix+"/admin/users/"+url.PathEscape(userID)+"/sessions", nil, http.StatusOK)
}
