package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
)

const cliSecret = "cli-test-secret-0123456789abcdefghijkl"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		tokenTTL = 0
		tokenRole = ""
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("RENX_JWT_SECRET", cliSecret)
	t.Setenv("RENX_JWT_ISSUER", "renx-test")

	out, err := execute(t, "token", "issue", "--tenant", "acme", "--user", "7", "--role", "manager", "--ttl", "10m")
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: []byte(cliSecret), Issuer: "renx-test"})
	require.NoError(t, err)

	claims, err := verifier.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, auth.RoleManager, claims.Role)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenIssue_Errors(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		t.Setenv("RENX_JWT_SECRET", "")
		t.Setenv("JWT_SECRET", "")

		_, err := execute(t, "token", "issue", "--tenant", "acme", "--user", "7")
		assert.ErrorContains(t, err, "no JWT secret")
	})

	t.Run("unknown role", func(t *testing.T) {
		t.Setenv("RENX_JWT_SECRET", cliSecret)

		_, err := execute(t, "token", "issue", "--tenant", "acme", "--user", "7", "--role", "owner")
		assert.ErrorContains(t, err, `unknown role "owner"`)
	})
}

func TestCSRFDemo(t *testing.T) {
	out, err := execute(t, "csrf")
	require.NoError(t, err)

	assert.Contains(t, out, "same session:   valid=true")
	assert.Contains(t, out, "other session:  valid=false")
	assert.Contains(t, out, "consumed:       valid=false")
	assert.Contains(t, out, "ttl:     15m0s")
}
