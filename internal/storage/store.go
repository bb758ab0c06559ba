package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"messenger-backend/internal/storage/zapadapter"
)

var (
	ErrUserNotExist        = errors.New("user does not exist")
	ErrChatNotExist        = errors.New("conversation does not exist")
	ErrChatBadUsers        = errors.New("bad users list")
	ErrEmptyName           = errors.New("group name is empty")
	ErrNotAMember          = errors.New("user is not a conversation member")
	ErrInvalidContent      = errors.New("invalid message content")
	ErrMessageNotExist     = errors.New("message does not exist")
	ErrNotMessageAuthor    = errors.New("user is not the message author")
	ErrMessageDeleted      = errors.New("message is deleted")
	ErrEditWindowExpired   = errors.New("edit window expired")
	ErrDeleteWindowExpired = errors.New("delete window expired")
)

const (
	maxContentLength = 1000
	editWindow       = 5 * time.Minute
	deleteWindow     = time.Hour

	// deletedMessageText replaces the content of a message deleted for everyone
	deletedMessageText = "This message was deleted"

	typingTimeout = 2 * time.Second
	onlineTimeout = 60 * time.Second

	defaultPageSize = 30
	maxPageSize     = 100
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool, makes sure the schema
// is in place and returns an instance of Store
func New(logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	s := &Store{
		logger: logger,
		db:     pool,
	}

	if err := s.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() {
	s.db.Close()
}
