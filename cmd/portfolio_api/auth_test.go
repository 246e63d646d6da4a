package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
)

const cliSecret = "cli-test-secret-0123456789abcdef0123456789"

func TestRunToken_IssuesVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", cliSecret)
	tokenSubject, tokenEmail, tokenHours = "admin", "admin@example.com", 2

	var out, errOut bytes.Buffer
	tokenCmd.SetOut(&out)
	tokenCmd.SetErr(&errOut)
	t.Cleanup(func() {
		tokenCmd.SetOut(nil)
		tokenCmd.SetErr(nil)
	})

	require.NoError(t, runToken(tokenCmd, nil))
	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)
	assert.Contains(t, errOut.String(), `token for "admin" expires`)

	jwtCfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	verifier, err := auth.NewJWTVerifier(jwtCfg, nil)
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestRunToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_PUBLIC_KEY_FILE", "")
	assert.Error(t, runToken(tokenCmd, nil))
}

func TestRevokeSubjectTokens(t *testing.T) {
	store := docstore.NewMemoryStore()
	revocations := auth.NewStoreRevocations(store)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, revokeSubjectTokens(context.Background(), &out, revocations, " admin ", at))
	assert.Contains(t, out.String(), `tokens for "admin" issued before 2025-01-02T03:04:05Z are revoked`)

	validAfter, found, err := revocations.ValidAfter(context.Background(), "admin")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, validAfter.Equal(at))
}

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, time.Time) error {
	return errors.New("store unavailable")
}

func TestRevokeSubjectTokens_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, revokeSubjectTokens(context.Background(), &out, failingRevoker{}, "admin", time.Now()))
	assert.Error(t, revokeSubjectTokens(context.Background(), &out, failingRevoker{}, "  ", time.Now()))
	assert.Empty(t, out.String())
}

func TestRunHashPassword(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")

	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	hashPasswordCmd.SetIn(strings.NewReader("s3cret\n"))
	t.Cleanup(func() {
		hashPasswordCmd.SetOut(nil)
		hashPasswordCmd.SetIn(nil)
	})

	require.NoError(t, runHashPassword(hashPasswordCmd, nil))
	hash := strings.TrimSpace(out.String())

	passwords, err := config.NewPasswordConfig()
	require.NoError(t, err)
	assert.True(t, passwords.VerifyPassword("s3cret", hash))
	assert.False(t, passwords.VerifyPassword("s3cret\n", hash))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	pw, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}
