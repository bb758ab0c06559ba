package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"messenger-backend/internal/storage"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	h             *handler
	afterShutdown []func()
}

// New returns a new Server with provided zap.SugaredLogger and storage.Store.
// Options are applied before the built-in middleware wrapping, so WithEnvConfig
// and timeouts act on the raw http.Server while every registered handler still
// ends up behind the enforcePostJson and log middlewares.
func New(logger *zap.SugaredLogger, store *storage.Store, opts ...Option) (*Server, error) {
	h := &handler{
		logger:  logger,
		store:   store,
		parsers: parsers{},
	}

	c := &config{
		httpServer: &http.Server{Addr: "0.0.0.0:9000"},
		handlers: map[string]http.Handler{
			"/users/sync":           http.HandlerFunc(h.syncUser),
			"/users/get":            http.HandlerFunc(h.getUser),
			"/users/list":           http.HandlerFunc(h.listUsers),
			"/users/profile/update": http.HandlerFunc(h.updateProfile),
			"/conversations/direct": http.HandlerFunc(h.directConversation),
			"/conversations/group":  http.HandlerFunc(h.groupConversation),
			"/conversations/list":   http.HandlerFunc(h.listConversations),
			"/conversations/get":    http.HandlerFunc(h.getConversation),
			"/conversations/read":   http.HandlerFunc(h.markRead),
			"/messages/add":         http.HandlerFunc(h.addMessage),
			"/messages/get":         http.HandlerFunc(h.getMessages),
			"/messages/edit":        http.HandlerFunc(h.editMessage),
			"/messages/delete":      http.HandlerFunc(h.deleteMessage),
			"/messages/hide":        http.HandlerFunc(h.hideMessage),
			"/messages/react":       http.HandlerFunc(h.toggleReaction),
			"/messages/unread":      http.HandlerFunc(h.unreadCount),
			"/typing/set":           http.HandlerFunc(h.setTyping),
			"/typing/get":           http.HandlerFunc(h.getTyping),
			"/presence/status":      http.HandlerFunc(h.setStatus),
			"/presence/heartbeat":   http.HandlerFunc(h.heartbeat),
			"/presence/sweep":       http.HandlerFunc(h.sweepPresence),
		},
	}

	for _, opt := range opts {
		opt.apply(c)
	}

	// registerHandlers must come last so middlewares wrap every handler
	for _, opt := range []Option{applyEnforcePostJson(), applyLog(logger.Desugar()), registerHandlers()} {
		opt.apply(c)
	}

	return &Server{
		logger:        logger,
		httpServer:    c.httpServer,
		h:             h,
		afterShutdown: c.afterShutdown,
	}, nil
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	s.logger.Info("Closing store")
	s.h.store.Close()
	s.logger.Info("Store is closed")

	return nil
}
