package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martagh/invoicedrive/internal/drive"
)

// stubCreds is a minimal load.Credentials for batch-setup tests.
type stubCreds struct {
	authErr   error
	authCalls int
}

func (c *stubCreds) IsAuthenticated() bool { return c.authErr == nil && c.authCalls > 0 }

func (c *stubCreds) Authenticate(context.Context) error {
	c.authCalls++

	return c.authErr
}

func (c *stubCreds) Invalidate() {}

func TestEnsureSession_EstablishesOnce(t *testing.T) {
	creds := &stubCreds{}

	require.NoError(t, ensureSession(context.Background(), creds))
	assert.Equal(t, 1, creds.authCalls)
}

func TestEnsureSession_MissingTokenAbortsRun(t *testing.T) {
	// A token that cannot establish a session at all must fail the run as
	// a whole, before any item is attempted.
	creds := &stubCreds{authErr: drive.ErrNotLoggedIn}

	err := ensureSession(context.Background(), creds)
	require.Error(t, err)
	assert.ErrorIs(t, err, drive.ErrNotLoggedIn)
	assert.Equal(t, 1, creds.authCalls, "no per-item retries of batch setup")
	assert.Contains(t, err.Error(), "establishing drive session")
}
