package server

import (
	"io/ioutil"
	"net/http"
)

// setTyping handles HTTP requests on "/typing/set" endpoint.
// Clients rate-limit the started-typing signal to about once per second while
// the user keeps typing; the stopped signal is optional since readers expire
// stale signals on their own.
func (h *handler) setTyping(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.presencePool.Get()
	defer h.parsers.presencePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, userID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	isTyping, msg := boolField(v, "isTyping")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.SetTyping(r.Context(), conversationID, userID, isTyping); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// getTyping handles HTTP requests on "/typing/get" endpoint
func (h *handler) getTyping(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.presencePool.Get()
	defer h.parsers.presencePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, viewerID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	users, err := h.store.TypingUsersByConversationID(r.Context(), conversationID, viewerID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, users)
}

// setStatus handles HTTP requests on "/presence/status" endpoint.
// Clients call it on session start, visibility changes, reconnect and unload.
func (h *handler) setStatus(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.presencePool.Get()
	defer h.parsers.presencePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := int64Field(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	isOnline, msg := boolField(v, "isOnline")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.SetOnlineStatus(r.Context(), userID, isOnline); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// heartbeat handles HTTP requests on "/presence/heartbeat" endpoint
func (h *handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.presencePool.Get()
	defer h.parsers.presencePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := int64Field(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.Heartbeat(r.Context(), userID); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// sweepPresence handles HTTP requests on "/presence/sweep" endpoint.
// It corrects users whose clients terminated without an explicit offline
// signal; a scheduler is expected to call it periodically.
func (h *handler) sweepPresence(w http.ResponseWriter, r *http.Request) {
	updated, err := h.store.SweepStaleOnlineUsers(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
