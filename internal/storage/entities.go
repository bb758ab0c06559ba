package storage

import "time"

type User struct {
	ID        int64     `json:"id"`
	ClerkID   string    `json:"clerkId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Reaction is a single (emoji, user) pair attached to a message.
// At most one such pair per message exists for a given user and emoji.
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID int64  `json:"userId"`
}

type Message struct {
	ID            int64      `json:"id"`
	Conversation  int64      `json:"conversationId"`
	Author        int64      `json:"senderId"`
	Content       string     `json:"content"`
	IsDeleted     bool       `json:"isDeleted"`
	ReplyTo       *int64     `json:"replyToMessageId,omitempty"`
	EditedAt      *time.Time `json:"editedAt,omitempty"`
	ForwardedFrom *int64     `json:"forwardedFrom,omitempty"`
	Reactions     []Reaction `json:"reactions"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// RepliedMessage is the resolved target of a reply, as shown inside the quoting message
type RepliedMessage struct {
	ID        int64     `json:"id"`
	Author    int64     `json:"senderId"`
	Content   string    `json:"content"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    User      `json:"sender"`
}

// MessageWithMeta is a message enriched for display: resolved sender, resolved
// reply target (absent when the target is hidden from the viewer) and the
// seen-by-all read flag derived from the other members' read horizons
type MessageWithMeta struct {
	Message
	Sender         User            `json:"sender"`
	ReplyToMessage *RepliedMessage `json:"replyToMessage,omitempty"`
	IsRead         bool            `json:"isRead"`
}

// MessagePage is one page of conversation history, oldest to newest.
// NextCursor is the creation time (unix nanoseconds) of the oldest message in
// the page and is 0 when HasMore is false.
type MessagePage struct {
	Messages   []MessageWithMeta `json:"messages"`
	NextCursor int64             `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}

// LastMessage is the newest message of a conversation as shown in the directory listing
type LastMessage struct {
	ID        int64     `json:"id"`
	Author    int64     `json:"senderId"`
	Content   string    `json:"content"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSummary is one row of a user's conversation directory
type ConversationSummary struct {
	ID              int64        `json:"id"`
	IsGroup         bool         `json:"isGroup"`
	Name            string       `json:"name,omitempty"`
	LastMessageTime time.Time    `json:"lastMessageTime"`
	OtherUser       *User        `json:"otherUser,omitempty"`
	GroupMembers    []User       `json:"groupMembers,omitempty"`
	LastMessage     *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount     int64        `json:"unreadCount"`
}

// ConversationDetail is a single conversation resolved relative to a viewer
type ConversationDetail struct {
	ID              int64     `json:"id"`
	IsGroup         bool      `json:"isGroup"`
	Name            string    `json:"name,omitempty"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	OtherUser       *User     `json:"otherUser,omitempty"`
	Members         []User    `json:"members"`
}
