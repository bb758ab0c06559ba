package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
)

// SetTyping records a typing signal for the user in the conversation. A stop
// signal zeroes the timestamp instead of deleting the row; readers treat any
// timestamp older than the typing timeout as "not typing" (lazy expiry).
// Callers without a membership are silently ignored.
func (s *Store) SetTyping(ctx context.Context, conversationID, userID int64, isTyping bool) error {
	var i int8
	sql := "select 1 from conversation_members where conversation_id = $1 and user_id = $2"
	err := s.db.QueryRow(ctx, sql, conversationID, userID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	lastTyped := time.Now()
	if !isTyping {
		lastTyped = time.Unix(0, 0)
	}

	sql = `insert into typing_status (conversation_id, user_id, last_typed)
	       values ($1, $2, $3)
	       on conflict (conversation_id, user_id) do update set last_typed = excluded.last_typed`
	_, err = s.db.Exec(ctx, sql, conversationID, userID, lastTyped)
	return err
}

// TypingUsersByConversationID returns the other members of the conversation
// whose typing signal has not yet expired
func (s *Store) TypingUsersByConversationID(ctx context.Context, conversationID, viewerID int64) ([]User, error) {
	sql := `select u.id, u.clerk_id, u.name, u.email, u.avatar_url, u.is_online, u.last_seen
	          from typing_status t
	          join users u
	            on u.id = t.user_id
	         where t.conversation_id = $1
	           and t.user_id <> $2
	           and t.last_typed > $3`
	rows, err := s.db.Query(ctx, sql, conversationID, viewerID, time.Now().Add(-typingTimeout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err = rows.Scan(&u.ID, &u.ClerkID, &u.Name, &u.Email, &u.AvatarURL, &u.IsOnline, &u.LastSeen)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

// SetOnlineStatus flips the user's online flag on explicit session events
// (start, visibility change, disconnect). Unknown users are a silent no-op.
func (s *Store) SetOnlineStatus(ctx context.Context, userID int64, isOnline bool) error {
	sql := "update users set is_online = $2, last_seen = $3 where id = $1"
	_, err := s.db.Exec(ctx, sql, userID, isOnline, time.Now())
	return err
}

// Heartbeat is the periodic keep-alive a foregrounded client sends; it keeps
// the user online and refreshes last_seen so the sweep leaves them alone
func (s *Store) Heartbeat(ctx context.Context, userID int64) error {
	sql := "update users set is_online = true, last_seen = $2 where id = $1"
	_, err := s.db.Exec(ctx, sql, userID, time.Now())
	return err
}

// SweepStaleOnlineUsers marks users offline whose last heartbeat is older
// than the online timeout. It only ever flips true to false for stale rows,
// so concurrent sweeps are safe. Returns the number of corrected users.
func (s *Store) SweepStaleOnlineUsers(ctx context.Context) (int64, error) {
	sql := "update users set is_online = false where is_online and last_seen < $1"
	tag, err := s.db.Exec(ctx, sql, time.Now().Add(-onlineTimeout))
	if err != nil {
		return 0, err
	}

	if n := tag.RowsAffected(); n > 0 {
		s.logger.Debugf("Marked %d stale users offline", n)
		return n, nil
	}

	return 0, nil
}
