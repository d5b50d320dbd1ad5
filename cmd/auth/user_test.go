package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against the database in dir and returns its output.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "auth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "Migrations completed successfully")

	out, err = run(t, dir, "user", "create", "--email", "Editor@Quill.Test", "--role", "editor")
	require.NoError(t, err)
	require.Contains(t, out, "Created editor@quill.test")
	require.Regexp(t, regexp.MustCompile(`Password: \S{16,}`), out)

	_, err = run(t, dir, "user", "create", "--email", "editor@quill.test", "--password", "long enough password")
	require.Error(t, err, "duplicate email")

	out, err = run(t, dir, "user", "set-role", "editor@quill.test", "admin")
	require.NoError(t, err)
	require.Contains(t, out, "editor@quill.test is now admin")

	out, err = run(t, dir, "user", "deactivate", "editor@quill.test")
	require.NoError(t, err)
	require.Contains(t, out, "editor@quill.test deactivated")

	out, err = run(t, dir, "user", "activate", "editor@quill.test")
	require.NoError(t, err)
	require.Contains(t, out, "editor@quill.test activated")
}

func TestUserCommands_Rejects(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "user", "set-role", "someone@quill.test", "overlord")
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	require.Equal(t, "INVALID_ARGUMENT", oopsErr.Code())

	_, err = run(t, dir, "user", "activate")
	require.Error(t, err, "email argument is required")

	_, err = run(t, dir, "user", "create")
	require.Error(t, err, "--email is required")

	_, err = run(t, dir, "--config", filepath.Join(dir, "missing.yaml"), "migrate")
	oopsErr, ok = oops.AsOops(err)
	require.True(t, ok)
	require.Equal(t, "CONFIG_INVALID", oopsErr.Code())
}
