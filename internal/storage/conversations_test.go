package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	mytesting "messenger-backend/internal/testing"
)

func TestGetOrCreateDirectConversation(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	userA := seedUser(t, s)
	userB := seedUser(t, s)

	first, err := s.GetOrCreateDirectConversation(context.Background(), userA, userB)
	require.NoError(t, err)

	// order of the pair must not matter
	second, err := s.GetOrCreateDirectConversation(context.Background(), userB, userA)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var count int64
	err = s.db.QueryRow(context.Background(),
		"select count(*) from conversations where pair_key = $1", pairKey(userA, userB)).Scan(&count)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestGetOrCreateDirectConversationConcurrent(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	userA := seedUser(t, s)
	userB := seedUser(t, s)

	const callers = 8
	ids := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.GetOrCreateDirectConversation(context.Background(), userA, userB)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestGetOrCreateDirectConversationSelfPair(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	user := seedUser(t, s)

	_, err := s.GetOrCreateDirectConversation(context.Background(), user, user)
	require.Equal(t, ErrChatBadUsers, err)
}

func TestGetOrCreateDirectConversationBadUsers(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	user := seedUser(t, s)

	_, err := s.GetOrCreateDirectConversation(context.Background(), user, -1)
	require.Equal(t, ErrChatBadUsers, err)
}

func TestCreateGroupConversation(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	creator := seedUser(t, s)
	invitees := []int64{seedUser(t, s), seedUser(t, s)}

	id, err := s.CreateGroupConversation(context.Background(), creator, invitees, mytesting.RandString())
	require.NoError(t, err)

	detail, err := s.ConversationByID(context.Background(), id, creator)
	require.NoError(t, err)
	require.True(t, detail.IsGroup)
	require.Len(t, detail.Members, 3)
}

func TestCreateGroupConversationEmptyName(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	creator := seedUser(t, s)
	invitees := []int64{seedUser(t, s), seedUser(t, s)}

	_, err := s.CreateGroupConversation(context.Background(), creator, invitees, "   ")
	require.Equal(t, ErrEmptyName, err)
}

func TestCreateGroupConversationDedupsCreator(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	creator := seedUser(t, s)
	other := seedUser(t, s)

	// creator is also listed among invitees
	id, err := s.CreateGroupConversation(context.Background(), creator, []int64{creator, other}, mytesting.RandString())
	require.NoError(t, err)

	detail, err := s.ConversationByID(context.Background(), id, creator)
	require.NoError(t, err)
	require.Len(t, detail.Members, 2)
}

func TestCreateGroupConversationTooFewMembers(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	creator := seedUser(t, s)

	_, err := s.CreateGroupConversation(context.Background(), creator, []int64{creator}, mytesting.RandString())
	require.Equal(t, ErrChatBadUsers, err)
}

func TestConversationsByUserID(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	userIDs := []int64{seedUser(t, s), seedUser(t, s), seedUser(t, s), seedUser(t, s)}
	self := userIDs[0]

	// direct conversations between the first user and each of the others
	convIDs := make([]int64, 0, len(userIDs)-1)
	for _, pair := range mytesting.BatchUserIDs(userIDs) {
		id, err := s.GetOrCreateDirectConversation(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		convIDs = append(convIDs, id)

		_, err = s.CreateMessage(context.Background(), id, pair[1], mytesting.RandString(), nil, nil)
		require.NoError(t, err)
	}

	summaries, err := s.ConversationsByUserID(context.Background(), self)
	require.NoError(t, err)
	require.Len(t, summaries, len(convIDs))

	// latest activity first
	gotIDs := make([]int64, 0, len(summaries))
	for _, sum := range summaries {
		gotIDs = append(gotIDs, sum.ID)
	}
	require.Equal(t, mytesting.ReverseIDs(convIDs), gotIDs)

	for _, sum := range summaries {
		require.False(t, sum.IsGroup)
		require.NotNil(t, sum.OtherUser)
		require.NotEqual(t, self, sum.OtherUser.ID)
		require.NotNil(t, sum.LastMessage)
		require.EqualValues(t, 1, sum.UnreadCount)
	}
}

func TestConversationsByUserIDNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.ConversationsByUserID(context.Background(), -1)
	require.Equal(t, ErrUserNotExist, err)
}

func TestConversationByIDNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	viewer := seedUser(t, s)

	_, err := s.ConversationByID(context.Background(), -1, viewer)
	require.Equal(t, ErrChatNotExist, err)
}

func TestConversationByIDResolvesPeer(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	conv, userA, userB := seedDirect(t, s)

	detail, err := s.ConversationByID(context.Background(), conv, userA)
	require.NoError(t, err)
	require.False(t, detail.IsGroup)
	require.NotNil(t, detail.OtherUser)
	require.Equal(t, userB, detail.OtherUser.ID)

	detail, err = s.ConversationByID(context.Background(), conv, userB)
	require.NoError(t, err)
	require.Equal(t, userA, detail.OtherUser.ID)
}
