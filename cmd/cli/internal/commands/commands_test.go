package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientFlags_resolve(t *testing.T) {
	dir := t.TempDir()

	t.Run("no credentials", func(t *testing.T) {
		_, _, err := (&ClientFlags{CredentialsDir: dir}).resolve()
		require.ErrorContains(t, err, "peopleops login")
	})

	t.Run("explicit token skips the store", func(t *testing.T) {
		server, token, err := (&ClientFlags{Token: "abc", CredentialsDir: dir}).resolve()
		require.NoError(t, err)
		require.Equal(t, defaultServerURL, server)
		require.Equal(t, "abc", token)
	})

	login := &LoginCmd{Name: "prod", Server: "https://hr.example.com", Token: "prod-token", CredentialsDir: dir}
	require.NoError(t, login.Run(context.Background()))

	staging := &LoginCmd{Name: "staging", Server: "https://hr-staging.example.com", Token: "staging-token", CredentialsDir: dir}
	require.NoError(t, staging.Run(context.Background()))

	t.Run("default credential", func(t *testing.T) {
		server, token, err := (&ClientFlags{CredentialsDir: dir}).resolve()
		require.NoError(t, err)
		require.Equal(t, "https://hr.example.com", server)
		require.Equal(t, "prod-token", token)
	})

	t.Run("named profile with server override", func(t *testing.T) {
		server, token, err := (&ClientFlags{Profile: "staging", Server: "http://127.0.0.1:9000", CredentialsDir: dir}).resolve()
		require.NoError(t, err)
		require.Equal(t, "http://127.0.0.1:9000", server)
		require.Equal(t, "staging-token", token)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, _, err := (&ClientFlags{Profile: "missing", CredentialsDir: dir}).resolve()
		require.ErrorContains(t, err, "credential not found")
	})

	require.NoError(t, (&LogoutCmd{Name: "prod", CredentialsDir: dir}).Run(context.Background()))

	t.Run("default cleared after logout", func(t *testing.T) {
		_, _, err := (&ClientFlags{CredentialsDir: dir}).resolve()
		require.ErrorContains(t, err, "peopleops login")
	})
}
