package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.GitHubConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		APIBaseURL:   srv.URL,
		Timeout:      time.Second,
	})
}

func TestRefreshSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ghr_old", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"ghu_new","refresh_token":"ghr_new","expires_in":28800,"refresh_token_expires_in":15811200,"token_type":"bearer"}`))
	})

	tr, err := c.Refresh(context.Background(), "ghr_old")
	require.NoError(t, err)
	assert.Equal(t, "ghu_new", tr.AccessToken)
	assert.Equal(t, "ghr_new", tr.RefreshToken)
	assert.Equal(t, 28800, tr.ExpiresIn)
}

func TestRefreshOAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"bad_refresh_token","error_description":"The refresh token passed is incorrect or expired."}`))
	})

	_, err := c.Refresh(context.Background(), "ghr_old")
	var oe *OAuthError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "bad_refresh_token", oe.Code)
	assert.NotErrorIs(t, err, autherr.ErrExternalService)
}

func TestRefreshServerErrorIsExternal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Refresh(context.Background(), "ghr_old")
	assert.ErrorIs(t, err, autherr.ErrExternalService)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer ghu_ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"login":"octocat","name":"The Octocat"}`))
	})

	u, err := c.GetUser(context.Background(), "ghu_ok")
	require.NoError(t, err)
	assert.EqualValues(t, 42, u.ID)
	assert.Equal(t, "octocat", u.Login)

	_, err = c.GetUser(context.Background(), "ghu_bad")
	var oe *OAuthError
	assert.True(t, errors.As(err, &oe))
}

func TestTokenRequiresCredentials(t *testing.T) {
	c := NewClient(config.GitHubConfig{})
	_, err := c.Exchange(context.Background(), "code")
	assert.Error(t, err)
}
