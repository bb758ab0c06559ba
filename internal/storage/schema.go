package storage

import "context"

// schema is executed at Store construction. Statements are idempotent so
// concurrent application instances can start against the same database.
//
// pair_key holds "min:max" of the two member ids for non-group conversations
// and stays NULL for groups; its partial unique index is what guarantees at
// most one 1:1 conversation per user pair under concurrent creation.
const schema = `
create table if not exists users (
	id bigserial primary key,
	clerk_id text not null unique,
	name text not null,
	email text not null,
	avatar_url text not null default '',
	is_online boolean not null default false,
	last_seen timestamptz not null default now()
);
create index if not exists users_last_seen_idx on users (last_seen);

create table if not exists conversations (
	id bigserial primary key,
	is_group boolean not null,
	name text,
	pair_key text,
	last_message_time timestamptz not null default now()
);
create unique index if not exists conversations_pair_key_idx on conversations (pair_key) where pair_key is not null;
create index if not exists conversations_last_message_time_idx on conversations (last_message_time);

create table if not exists conversation_members (
	id bigserial primary key,
	conversation_id bigint not null references conversations (id),
	user_id bigint not null references users (id),
	last_seen_message_id bigint,
	unique (conversation_id, user_id)
);
create index if not exists conversation_members_user_idx on conversation_members (user_id);

create table if not exists messages (
	id bigserial primary key,
	conversation_id bigint not null references conversations (id),
	sender_id bigint not null references users (id),
	content text not null,
	is_deleted boolean not null default false,
	reply_to_message_id bigint references messages (id),
	edited_at timestamptz,
	forwarded_from bigint references users (id),
	reactions jsonb not null default '[]',
	created_at timestamptz not null
);
create index if not exists messages_conversation_time_idx on messages (conversation_id, created_at);

create table if not exists typing_status (
	conversation_id bigint not null references conversations (id),
	user_id bigint not null references users (id),
	last_typed timestamptz not null,
	unique (conversation_id, user_id)
);

create table if not exists hidden_messages (
	user_id bigint not null references users (id),
	message_id bigint not null references messages (id),
	unique (user_id, message_id)
);
create index if not exists hidden_messages_user_idx on hidden_messages (user_id);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}
