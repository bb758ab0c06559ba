package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mytesting "messenger-backend/internal/testing"
)

func bootstrap(t *testing.T) *Store {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	s, err := New(logger.Sugar(), TestConfig)
	require.NoError(t, err)

	return s
}

// seedUser creates a user with a random identity and returns its id
func seedUser(t *testing.T, s *Store) int64 {
	name := mytesting.RandString()
	id, err := s.SyncUser(context.Background(), mytesting.RandString(), name, name+"@example.com", "")
	require.NoError(t, err)

	return id
}

// seedDirect creates two users and a direct conversation between them
func seedDirect(t *testing.T, s *Store) (conversationID, userA, userB int64) {
	userA = seedUser(t, s)
	userB = seedUser(t, s)

	conversationID, err := s.GetOrCreateDirectConversation(context.Background(), userA, userB)
	require.NoError(t, err)

	return conversationID, userA, userB
}

// backdateMessage shifts a message's creation time into the past, so window
// and horizon behaviour can be tested without waiting
func backdateMessage(t *testing.T, s *Store, messageID int64, age time.Duration) {
	_, err := s.db.Exec(context.Background(),
		"update messages set created_at = $1 where id = $2", time.Now().Add(-age), messageID)
	require.NoError(t, err)
}

func backdateTyping(t *testing.T, s *Store, conversationID, userID int64, age time.Duration) {
	_, err := s.db.Exec(context.Background(),
		"update typing_status set last_typed = $1 where conversation_id = $2 and user_id = $3",
		time.Now().Add(-age), conversationID, userID)
	require.NoError(t, err)
}

func backdateLastSeen(t *testing.T, s *Store, userID int64, age time.Duration) {
	_, err := s.db.Exec(context.Background(),
		"update users set last_seen = $1 where id = $2", time.Now().Add(-age), userID)
	require.NoError(t, err)
}
