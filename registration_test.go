package signon_test

import (
	"context"
	"testing"
	"time"

	"github.com/skaife/go-signon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistration(t *testing.T) (*signon.CompleteRegistrationHandler, *signon.PendingTokenService, signon.RepositoryManager) {
	t.Helper()

	db := setupTestDB(t)
	repo := signon.NewRepositoryManager(db)
	pending := signon.NewPendingTokenService(newTestConfig(), nil)
	handler := signon.NewCompleteRegistrationHandler(repo, pending)

	return handler, pending, repo
}

func TestCompleteRegistration_HappyPath(t *testing.T) {
	handler, pending, repo := setupRegistration(t)
	ctx := context.Background()

	token, err := pending.Issue(testIdentity())
	require.NoError(t, err)

	bio := "mathematician"
	user, err := handler.Execute(ctx, signon.CompleteRegistrationMessage{
		Token:    token,
		Username: "ada",
		Bio:      &bio,
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "google", user.Provider)
	assert.Equal(t, "ext-12345", user.ExternalID)
	assert.Equal(t, "ada@example.com", user.Email)
	require.NotNil(t, user.Bio)
	assert.Equal(t, "mathematician", *user.Bio)
	assert.Nil(t, user.Image)

	stored, err := repo.Users().GetByProviderID(ctx, "google", "ext-12345")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestCompleteRegistration_DoubleSubmit(t *testing.T) {
	handler, pending, _ := setupRegistration(t)
	ctx := context.Background()

	token, err := pending.Issue(testIdentity())
	require.NoError(t, err)

	first, err := handler.Execute(ctx, signon.CompleteRegistrationMessage{
		Token:    token,
		Username: "ada",
	})
	require.NoError(t, err)

	// resubmitting the same token resolves to the account that already
	// holds the identity, even under a different username
	second, err := handler.Execute(ctx, signon.CompleteRegistrationMessage{
		Token:    token,
		Username: "ada_again",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ada", second.Username)
}

func TestCompleteRegistration_UsernameTaken(t *testing.T) {
	handler, pending, _ := setupRegistration(t)
	ctx := context.Background()

	token, err := pending.Issue(testIdentity())
	require.NoError(t, err)

	_, err = handler.Execute(ctx, signon.CompleteRegistrationMessage{
		Token:    token,
		Username: "ada",
	})
	require.NoError(t, err)

	other, err := pending.Issue(signon.ExternalIdentity{
		Provider:   "github",
		ExternalID: "ext-99",
		Email:      "other@example.com",
	})
	require.NoError(t, err)

	_, err = handler.Execute(ctx, signon.CompleteRegistrationMessage{
		Token:    other,
		Username: "ada",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, signon.ErrUsernameTaken)
}

func TestCompleteRegistration_InvalidUsername(t *testing.T) {
	handler, pending, _ := setupRegistration(t)
	ctx := context.Background()

	token, err := pending.Issue(testIdentity())
	require.NoError(t, err)

	for _, username := range []string{"", "ab", "has spaces", "oh!no", "waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay-too-long"} {
		_, err = handler.Execute(ctx, signon.CompleteRegistrationMessage{
			Token:    token,
			Username: username,
		})
		require.Error(t, err, "username %q should be rejected", username)
		assert.False(t, signon.IsTokenInvalid(err))
	}
}

func TestCompleteRegistration_BadTokens(t *testing.T) {
	handler, pending, repo := setupRegistration(t)
	ctx := context.Background()

	t.Run("tampered token", func(t *testing.T) {
		token, err := pending.Issue(testIdentity())
		require.NoError(t, err)

		_, err = handler.Execute(ctx, signon.CompleteRegistrationMessage{
			Token:    token + "x",
			Username: "ada",
		})
		require.Error(t, err)
		assert.True(t, signon.IsTokenInvalid(err))
	})

	t.Run("expired token", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.pendingWindow = time.Millisecond
		shortLived := signon.NewPendingTokenService(cfg, nil)

		token, err := shortLived.Issue(testIdentity())
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		_, err = signon.NewCompleteRegistrationHandler(repo, shortLived).
			Execute(ctx, signon.CompleteRegistrationMessage{
				Token:    token,
				Username: "ada",
			})
		require.Error(t, err)
		assert.True(t, signon.IsTokenExpired(err))
	})

	t.Run("no account is created on failure", func(t *testing.T) {
		_, err := repo.Users().GetByProviderID(ctx, "google", "ext-12345")
		require.Error(t, err)
		assert.True(t, signon.IsIdentityNotFound(err))
	})
}
