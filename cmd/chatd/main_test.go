package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/domain"
)

func runCmd(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	code := execute(cmd)
	return stdout.String(), stderr.String(), code
}

func TestVersionCommand(t *testing.T) {
	out, _, code := runCmd(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "chatd dev")
}

func TestValidateDefaults(t *testing.T) {
	t.Setenv("MEDIA_BACKEND", "http")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	out, _, code := runCmd(t, "validate")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ws://127.0.0.1:3000/chat")
	assert.Contains(t, out, "archive:      disabled")
	assert.Contains(t, out, "config ok")
}

func TestValidateRejectsS3WithoutBucket(t *testing.T) {
	t.Setenv("MEDIA_BACKEND", "s3")
	t.Setenv("MEDIA_S3_BUCKET", "")

	_, errOut, code := runCmd(t, "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "MEDIA_S3_BUCKET")
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	out, errOut, code := runCmd(t, "token", "--participant", "agent-7", "--role", "agent")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "expires")

	claims, err := auth.NewTokenManager("test-secret", 60).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "agent-7", claims.Subject)
	assert.Equal(t, domain.RoleAgent, claims.Role)
}

func TestTokenRejectsBadInput(t *testing.T) {
	_, errOut, code := runCmd(t, "token", "--participant", "u1", "--role", "admin")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut)

	_, _, code = runCmd(t, "token", "--participant", " ")
	assert.Equal(t, 1, code)

	_, _, code = runCmd(t, "token")
	assert.Equal(t, 1, code)
}
