package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// pairKey builds the deterministic "min:max" key identifying a 1:1 conversation
func pairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
}

// GetOrCreateDirectConversation returns the single non-group conversation
// between the two users, creating it together with both memberships when it
// does not exist yet. The unique index on pair_key serializes concurrent
// creation attempts: the loser of the race re-runs the lookup and both callers
// observe the same conversation id.
func (s *Store) GetOrCreateDirectConversation(ctx context.Context, userA, userB int64) (int64, error) {
	if userA == userB {
		return 0, ErrChatBadUsers
	}
	key := pairKey(userA, userB)

	var id int64
	lookup := "select id from conversations where pair_key = $1"
	err := s.db.QueryRow(ctx, lookup, key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	s.logger.Debugf("Creating direct conversation for pair (%s)", key)

	id, err = s.createDirectConversation(ctx, key, userA, userB)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// the other participant created it first
			if lookupErr := s.db.QueryRow(ctx, lookup, key).Scan(&id); lookupErr != nil {
				return 0, lookupErr
			}
			return id, nil
		}
		return 0, err
	}

	return id, nil
}

func (s *Store) createDirectConversation(ctx context.Context, key string, userA, userB int64) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	var id int64
	sql := "insert into conversations (is_group, pair_key, last_message_time) values (false, $1, $2) returning id"
	if err = tx.QueryRow(ctx, sql, key, time.Now()).Scan(&id); err != nil {
		return 0, err
	}

	rows := []memberRow{
		{conversationID: id, userID: userA},
		{conversationID: id, userID: userB},
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"conversation_members"}, []string{"conversation_id", "user_id"}, copyFromMembers(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, ErrChatBadUsers
		}
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return id, nil
}

// CreateGroupConversation performs a two-step transaction to create a named
// group (1. insert conversation record; 2. bulk insert memberships for the
// creator and every invitee) and returns its id
func (s *Store) CreateGroupConversation(ctx context.Context, creator int64, memberIDs []int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyName
	}

	// dedup the creator if also listed among invitees
	seen := map[int64]bool{creator: true}
	members := []int64{creator}
	for _, m := range memberIDs {
		if !seen[m] {
			seen[m] = true
			members = append(members, m)
		}
	}
	if len(members) < 2 {
		return 0, ErrChatBadUsers
	}

	s.logger.Debugf("Creating group conversation (%s) with users (%v)", name, members)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(context.Background())

	var id int64
	sql := "insert into conversations (is_group, name, last_message_time) values (true, $1, $2) returning id"
	if err = tx.QueryRow(ctx, sql, name, time.Now()).Scan(&id); err != nil {
		return 0, err
	}

	rows := make([]memberRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, memberRow{conversationID: id, userID: m})
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"conversation_members"}, []string{"conversation_id", "user_id"}, copyFromMembers(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, ErrChatBadUsers
		}
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	s.logger.Debugf("Created group conversation (%s) with id %d", name, id)

	return id, nil
}

// ConversationsByUserID returns the user's conversation directory: every
// conversation with its members, newest message and the user's unread count,
// sorted by last message time from latest to oldest
func (s *Store) ConversationsByUserID(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	s.logger.Debugf("Retrieving conversations for user (id: %d)", userID)

	// check if user exists
	var i int8
	sql := "select 1 from users where id = $1"
	err := s.db.QueryRow(ctx, sql, userID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotExist
		}
		return nil, err
	}

	sql = ` -- user conversations with members, last message and unread count
			with user_convs as (
				select c.id,
				       c.is_group,
				       c.name,
				       c.last_message_time,
				       m.last_seen_message_id
				  from conversations c
				  join conversation_members m
				    on m.conversation_id = c.id
				 where m.user_id = $1
			),

			members_per_conv as (
				select cm.conversation_id,
				       array_agg(jsonb_build_object(
				           'id', u.id,
				           'clerkId', u.clerk_id,
				           'name', u.name,
				           'email', u.email,
				           'avatarUrl', u.avatar_url,
				           'isOnline', u.is_online) order by u.id) as users
				  from conversation_members cm
				  join users u
				    on u.id = cm.user_id
				 where cm.conversation_id in (select id from user_convs)
				 group by cm.conversation_id
			)

			select uc.id,
			       uc.is_group,
			       coalesce(uc.name, ''),
			       uc.last_message_time,
			       mpc.users,
			       lm.id,
			       lm.sender_id,
			       lm.content,
			       lm.is_deleted,
			       lm.created_at,
			       (select count(*)
			          from messages msg
			         where msg.conversation_id = uc.id
			           and (uc.last_seen_message_id is null
			                or msg.created_at > (select created_at from messages where id = uc.last_seen_message_id))
			       ) as unread
			  from user_convs uc
			  join members_per_conv mpc
			    on mpc.conversation_id = uc.id
			  left join lateral (
			       select id, sender_id, content, is_deleted, created_at
			         from messages
			        where conversation_id = uc.id
			        order by created_at desc
			        limit 1
			  ) lm on true
			 order by uc.last_message_time desc`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var (
			sum         ConversationSummary
			users       pgtype.JSONBArray
			lmID        *int64
			lmAuthor    *int64
			lmContent   *string
			lmDeleted   *bool
			lmCreatedAt *time.Time
		)
		err = rows.Scan(&sum.ID, &sum.IsGroup, &sum.Name, &sum.LastMessageTime, &users,
			&lmID, &lmAuthor, &lmContent, &lmDeleted, &lmCreatedAt, &sum.UnreadCount)
		if err != nil {
			return nil, err
		}

		members, err := decodeUsers(users)
		if err != nil {
			return nil, err
		}

		if sum.IsGroup {
			sum.GroupMembers = members
		} else {
			sum.OtherUser = otherOf(members, userID)
		}

		if lmID != nil {
			sum.LastMessage = &LastMessage{
				ID:        *lmID,
				Author:    *lmAuthor,
				Content:   *lmContent,
				IsDeleted: *lmDeleted,
				CreatedAt: *lmCreatedAt,
			}
		}

		summaries = append(summaries, sum)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d conversations", len(summaries))

	return summaries, nil
}

// ConversationByID returns a single conversation resolved relative to the viewer
func (s *Store) ConversationByID(ctx context.Context, conversationID, viewerID int64) (ConversationDetail, error) {
	var d ConversationDetail
	var name *string
	sql := "select id, is_group, name, last_message_time from conversations where id = $1"
	err := s.db.QueryRow(ctx, sql, conversationID).Scan(&d.ID, &d.IsGroup, &name, &d.LastMessageTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationDetail{}, ErrChatNotExist
		}
		return ConversationDetail{}, err
	}
	if name != nil {
		d.Name = *name
	}

	sql = `select u.id, u.clerk_id, u.name, u.email, u.avatar_url, u.is_online, u.last_seen
	         from conversation_members m
	         join users u
	           on u.id = m.user_id
	        where m.conversation_id = $1
	        order by u.id`
	rows, err := s.db.Query(ctx, sql, conversationID)
	if err != nil {
		return ConversationDetail{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var u User
		err = rows.Scan(&u.ID, &u.ClerkID, &u.Name, &u.Email, &u.AvatarURL, &u.IsOnline, &u.LastSeen)
		if err != nil {
			return ConversationDetail{}, err
		}
		d.Members = append(d.Members, u)
	}
	if rows.Err() != nil {
		return ConversationDetail{}, rows.Err()
	}

	if !d.IsGroup {
		d.OtherUser = otherOf(d.Members, viewerID)
	}

	return d, nil
}

// decodeUsers unpacks an aggregated jsonb user array the way the database builds it
func decodeUsers(arr pgtype.JSONBArray) ([]User, error) {
	raw := make([]string, len(arr.Elements))
	if err := arr.AssignTo(&raw); err != nil {
		return nil, err
	}

	users := make([]User, len(raw))
	for i, v := range raw {
		if err := json.Unmarshal([]byte(v), &users[i]); err != nil {
			return nil, err
		}
	}

	return users, nil
}

// otherOf picks the peer of a non-group conversation from its member list
func otherOf(members []User, viewerID int64) *User {
	for i := range members {
		if members[i].ID != viewerID {
			return &members[i]
		}
	}
	return nil
}
