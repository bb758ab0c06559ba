package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	mytesting "messenger-backend/internal/testing"
)

func TestSyncUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	clerkID := mytesting.RandString()
	id, err := s.SyncUser(context.Background(), clerkID, "Alice", "alice@example.com", "")
	require.NoError(t, err)

	user, err := s.UserByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	require.Equal(t, id, user.ID)
	require.Equal(t, "Alice", user.Name)
	require.True(t, user.IsOnline)
}

func TestSyncUserUpdatesExisting(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	clerkID := mytesting.RandString()
	first, err := s.SyncUser(context.Background(), clerkID, "Alice", "alice@example.com", "")
	require.NoError(t, err)

	second, err := s.SyncUser(context.Background(), clerkID, "Alice Smith", "alice@example.com", "https://cdn/avatar.png")
	require.NoError(t, err)
	require.Equal(t, first, second)

	user, err := s.UserByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	require.Equal(t, "Alice Smith", user.Name)
	require.Equal(t, "https://cdn/avatar.png", user.AvatarURL)
}

func TestUserByClerkIDNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.UserByClerkID(context.Background(), mytesting.RandString())
	require.Equal(t, ErrUserNotExist, err)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	clerkID := mytesting.RandString()
	id, err := s.SyncUser(context.Background(), clerkID, "Bob", "bob@example.com", "")
	require.NoError(t, err)

	// explicit offline, profile update must not touch presence
	require.NoError(t, s.SetOnlineStatus(context.Background(), id, false))

	updated, err := s.UpdateProfile(context.Background(), clerkID, "Robert", "robert@example.com", "")
	require.NoError(t, err)
	require.Equal(t, id, updated)

	user, err := s.UserByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	require.Equal(t, "Robert", user.Name)
	require.False(t, user.IsOnline)
}

func TestUpdateProfileNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.UpdateProfile(context.Background(), mytesting.RandString(), "Nobody", "nobody@example.com", "")
	require.Equal(t, ErrUserNotExist, err)
}

func TestListUsersExcludesSelf(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	self := seedUser(t, s)
	other := seedUser(t, s)

	users, err := s.ListUsers(context.Background(), self)
	require.NoError(t, err)

	ids := make(map[int64]bool, len(users))
	for _, u := range users {
		ids[u.ID] = true
	}
	require.False(t, ids[self])
	require.True(t, ids[other])
}
