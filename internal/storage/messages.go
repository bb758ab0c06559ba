package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// validateContent trims and checks message content against the length bounds
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLength {
		return "", ErrInvalidContent
	}
	return content, nil
}

// CreateMessage appends a message to a conversation and advances the
// conversation's last message time in the same transaction, so directory
// ordering never observes one without the other
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID int64, content string, replyTo, forwardedFrom *int64) (int64, error) {
	content, err := validateContent(content)
	if err != nil {
		return 0, err
	}

	s.logger.Debugf("Creating message from user (id: %d) in conversation (id: %d)", senderID, conversationID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(context.Background())

	// sender must hold a membership
	var i int8
	sql := "select 1 from conversation_members where conversation_id = $1 and user_id = $2"
	err = tx.QueryRow(ctx, sql, conversationID, senderID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotAMember
		}
		return 0, err
	}

	now := time.Now()

	var id int64
	sql = `insert into messages (conversation_id, sender_id, content, is_deleted, reply_to_message_id, forwarded_from, reactions, created_at)
	       values ($1, $2, $3, false, $4, $5, '[]', $6)
	       returning id`
	err = tx.QueryRow(ctx, sql, conversationID, senderID, content, replyTo, forwardedFrom, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "messages_reply_to_message_id_fkey":
				return 0, ErrMessageNotExist
			case "messages_forwarded_from_fkey":
				return 0, ErrUserNotExist
			}
		}
		return 0, err
	}

	sql = "update conversations set last_message_time = $2 where id = $1"
	if _, err = tx.Exec(ctx, sql, conversationID, now); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return id, nil
}

// EditMessage replaces message content within the edit window. Only the
// sender may edit, deleted messages stay tombstoned forever.
func (s *Store) EditMessage(ctx context.Context, messageID, userID int64, content string) error {
	content, err := validateContent(content)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var (
		senderID  int64
		isDeleted bool
		createdAt time.Time
	)
	sql := "select sender_id, is_deleted, created_at from messages where id = $1 for update"
	err = tx.QueryRow(ctx, sql, messageID).Scan(&senderID, &isDeleted, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotExist
		}
		return err
	}

	if senderID != userID {
		return ErrNotMessageAuthor
	}
	if isDeleted {
		return ErrMessageDeleted
	}
	if time.Since(createdAt) > editWindow {
		return ErrEditWindowExpired
	}

	sql = "update messages set content = $2, edited_at = $3 where id = $1"
	if _, err = tx.Exec(ctx, sql, messageID, content, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteMessage deletes a message for everyone: the row stays but its content
// is replaced by the tombstone text. Irreversible.
func (s *Store) DeleteMessage(ctx context.Context, messageID, userID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var (
		senderID  int64
		createdAt time.Time
	)
	sql := "select sender_id, created_at from messages where id = $1 for update"
	err = tx.QueryRow(ctx, sql, messageID).Scan(&senderID, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotExist
		}
		return err
	}

	if senderID != userID {
		return ErrNotMessageAuthor
	}
	if time.Since(createdAt) > deleteWindow {
		return ErrDeleteWindowExpired
	}

	sql = "update messages set is_deleted = true, content = $2 where id = $1"
	if _, err = tx.Exec(ctx, sql, messageID, deletedMessageText); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// HideMessage hides a message from the calling user only ("delete for me").
// Idempotent: repeated calls leave the same single row behind.
func (s *Store) HideMessage(ctx context.Context, messageID, userID int64) error {
	sql := "insert into hidden_messages (user_id, message_id) values ($1, $2) on conflict do nothing"
	_, err := s.db.Exec(ctx, sql, userID, messageID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "hidden_messages_message_id_fkey":
				return ErrMessageNotExist
			case "hidden_messages_user_id_fkey":
				return ErrUserNotExist
			}
		}
		return err
	}

	return nil
}

// ToggleReaction adds the (user, emoji) pair to the message's reaction list,
// or removes it when that exact pair is already present
func (s *Store) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var raw []byte
	sql := "select reactions from messages where id = $1 for update"
	err = tx.QueryRow(ctx, sql, messageID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotExist
		}
		return err
	}

	var reactions []Reaction
	if err = json.Unmarshal(raw, &reactions); err != nil {
		return err
	}

	found := -1
	for i, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			found = i
			break
		}
	}
	if found >= 0 {
		reactions = append(reactions[:found], reactions[found+1:]...)
	} else {
		reactions = append(reactions, Reaction{Emoji: emoji, UserID: userID})
	}

	updated, err := json.Marshal(reactions)
	if err != nil {
		return err
	}

	sql = "update messages set reactions = $2 where id = $1"
	if _, err = tx.Exec(ctx, sql, messageID, updated); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MessagesByConversationID returns one page of conversation history for a
// viewer. Messages hidden by the viewer are filtered by the database before
// the limit applies, so a page is short only when history is exhausted.
// A zero cursor means "newest page"; otherwise only messages created strictly
// before the cursor are returned. Within the page messages are ordered oldest
// to newest.
func (s *Store) MessagesByConversationID(ctx context.Context, conversationID, viewerID int64, limit int, cursor time.Time) (MessagePage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	s.logger.Debugf("Retrieving messages for conversation (id: %d), viewer (id: %d)", conversationID, viewerID)

	// check if conversation exists
	var i int8
	sql := "select 1 from conversations where id = $1"
	err := s.db.QueryRow(ctx, sql, conversationID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessagePage{}, ErrChatNotExist
		}
		return MessagePage{}, err
	}

	horizon, err := s.minReadHorizon(ctx, conversationID, viewerID)
	if err != nil {
		return MessagePage{}, err
	}

	var cursorArg *time.Time
	if !cursor.IsZero() {
		cursorArg = &cursor
	}

	sql = `select m.id, m.conversation_id, m.sender_id, m.content, m.is_deleted,
	              m.reply_to_message_id, m.edited_at, m.forwarded_from, m.reactions, m.created_at,
	              su.id, su.clerk_id, su.name, su.email, su.avatar_url, su.is_online, su.last_seen,
	              r.id, r.sender_id, r.content, r.is_deleted, r.created_at,
	              ru.id, ru.clerk_id, ru.name, ru.email, ru.avatar_url, ru.is_online, ru.last_seen
	         from messages m
	         join users su
	           on su.id = m.sender_id
	         left join messages r
	           on r.id = m.reply_to_message_id
	          and not exists (select 1 from hidden_messages hr where hr.message_id = r.id and hr.user_id = $2)
	         left join users ru
	           on ru.id = r.sender_id
	        where m.conversation_id = $1
	          and ($3::timestamptz is null or m.created_at < $3)
	          and not exists (select 1 from hidden_messages h where h.message_id = m.id and h.user_id = $2)
	        order by m.created_at desc
	        limit $4`

	rows, err := s.db.Query(ctx, sql, conversationID, viewerID, cursorArg, limit+1)
	if err != nil {
		return MessagePage{}, err
	}
	defer rows.Close()

	var messages []MessageWithMeta
	for rows.Next() {
		var (
			m   MessageWithMeta
			raw []byte

			rID, rAuthor      *int64
			rContent          *string
			rDeleted          *bool
			rCreatedAt        *time.Time
			ruID              *int64
			ruClerk, ruName   *string
			ruEmail, ruAvatar *string
			ruOnline          *bool
			ruLastSeen        *time.Time
		)
		err = rows.Scan(&m.ID, &m.Conversation, &m.Author, &m.Content, &m.IsDeleted,
			&m.ReplyTo, &m.EditedAt, &m.ForwardedFrom, &raw, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.ClerkID, &m.Sender.Name, &m.Sender.Email, &m.Sender.AvatarURL, &m.Sender.IsOnline, &m.Sender.LastSeen,
			&rID, &rAuthor, &rContent, &rDeleted, &rCreatedAt,
			&ruID, &ruClerk, &ruName, &ruEmail, &ruAvatar, &ruOnline, &ruLastSeen)
		if err != nil {
			return MessagePage{}, err
		}

		if err = json.Unmarshal(raw, &m.Reactions); err != nil {
			return MessagePage{}, err
		}

		if rID != nil && ruID != nil {
			m.ReplyToMessage = &RepliedMessage{
				ID:        *rID,
				Author:    *rAuthor,
				Content:   *rContent,
				IsDeleted: *rDeleted,
				CreatedAt: *rCreatedAt,
				Sender: User{
					ID:        *ruID,
					ClerkID:   *ruClerk,
					Name:      *ruName,
					Email:     *ruEmail,
					AvatarURL: *ruAvatar,
					IsOnline:  *ruOnline,
					LastSeen:  *ruLastSeen,
				},
			}
		}

		m.IsRead = !m.CreatedAt.After(horizon)

		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return MessagePage{}, rows.Err()
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	// reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	page := MessagePage{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore {
		page.NextCursor = messages[0].CreatedAt.UnixNano()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return page, nil
}
