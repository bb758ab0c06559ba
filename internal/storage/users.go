package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
)

// SyncUser creates or refreshes a user record from the identity provider's
// profile and returns its id. Each successful authentication calls this, so
// the user also comes back online with a fresh last_seen stamp.
func (s *Store) SyncUser(ctx context.Context, clerkID, name, email, avatarURL string) (int64, error) {
	s.logger.Debugf("Syncing user (%s)", clerkID)

	var id int64
	sql := `insert into users (clerk_id, name, email, avatar_url, is_online, last_seen)
	        values ($1, $2, $3, $4, true, $5)
	        on conflict (clerk_id) do update
	           set name = excluded.name,
	               email = excluded.email,
	               avatar_url = excluded.avatar_url,
	               is_online = true,
	               last_seen = excluded.last_seen
	        returning id`
	err := s.db.QueryRow(ctx, sql, clerkID, name, email, avatarURL, time.Now()).Scan(&id)
	if err != nil {
		return 0, err
	}

	s.logger.Debugf("Synced user (%s) with id %d", clerkID, id)

	return id, nil
}

// UpdateProfile patches display fields without touching presence state
func (s *Store) UpdateProfile(ctx context.Context, clerkID, name, email, avatarURL string) (int64, error) {
	var id int64
	sql := "update users set name = $2, email = $3, avatar_url = $4 where clerk_id = $1 returning id"
	err := s.db.QueryRow(ctx, sql, clerkID, name, email, avatarURL).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotExist
		}
		return 0, err
	}

	return id, nil
}

// UserByClerkID returns the user synchronized from the given identity key
func (s *Store) UserByClerkID(ctx context.Context, clerkID string) (User, error) {
	var u User
	sql := "select id, clerk_id, name, email, avatar_url, is_online, last_seen from users where clerk_id = $1"
	err := s.db.QueryRow(ctx, sql, clerkID).
		Scan(&u.ID, &u.ClerkID, &u.Name, &u.Email, &u.AvatarURL, &u.IsOnline, &u.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// ListUsers returns the user directory excluding the requesting user
func (s *Store) ListUsers(ctx context.Context, exceptID int64) ([]User, error) {
	sql := `select id, clerk_id, name, email, avatar_url, is_online, last_seen
	          from users
	         where id <> $1
	         order by name, id`
	rows, err := s.db.Query(ctx, sql, exceptID)
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
