package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
)

// MarkConversationRead advances the caller's read horizon to the
// conversation's newest message. A conversation without messages or a missing
// membership is a silent no-op: this runs on a UI cadence where there is
// nothing actionable to report.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, userID int64) error {
	sql := `update conversation_members m
	           set last_seen_message_id = lm.id
	          from (select id
	                  from messages
	                 where conversation_id = $1
	                 order by created_at desc
	                 limit 1) lm
	         where m.conversation_id = $1
	           and m.user_id = $2`
	_, err := s.db.Exec(ctx, sql, conversationID, userID)
	return err
}

// minReadHorizon computes the creation time of the newest message every OTHER
// member of the conversation has acknowledged. A member who never read
// anything contributes the zero horizon, so in groups a message counts as read
// only once the slowest member has reached it. For 1:1 conversations this is
// simply the peer's horizon.
func (s *Store) minReadHorizon(ctx context.Context, conversationID, viewerID int64) (time.Time, error) {
	var horizon time.Time
	sql := `select coalesce(min(coalesce(lm.created_at, to_timestamp(0))), to_timestamp(0))
	          from conversation_members m
	          left join messages lm
	            on lm.id = m.last_seen_message_id
	         where m.conversation_id = $1
	           and m.user_id <> $2`
	err := s.db.QueryRow(ctx, sql, conversationID, viewerID).Scan(&horizon)
	if err != nil {
		return time.Time{}, err
	}
	return horizon, nil
}

// UnreadCount returns how many messages in the conversation were created
// after the user's last seen message. Without a horizon every message counts.
// Hidden-for-me messages still count until read.
func (s *Store) UnreadCount(ctx context.Context, conversationID, userID int64) (int64, error) {
	var lastSeen *int64
	sql := "select last_seen_message_id from conversation_members where conversation_id = $1 and user_id = $2"
	err := s.db.QueryRow(ctx, sql, conversationID, userID).Scan(&lastSeen)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var count int64
	if lastSeen == nil {
		sql = "select count(*) from messages where conversation_id = $1"
		err = s.db.QueryRow(ctx, sql, conversationID).Scan(&count)
	} else {
		sql = `select count(*)
		         from messages
		        where conversation_id = $1
		          and created_at > (select created_at from messages where id = $2)`
		err = s.db.QueryRow(ctx, sql, conversationID, *lastSeen).Scan(&count)
	}
	if err != nil {
		return 0, err
	}

	return count, nil
}
