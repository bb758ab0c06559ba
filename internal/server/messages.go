package server

import (
	"io/ioutil"
	"net/http"
	"time"

	"github.com/valyala/fastjson"
)

// addMessage handles HTTP requests on "/messages/add" endpoint
func (h *handler) addMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, msg := int64Field(v, "conversation")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	senderID, msg := int64Field(v, "sender")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	content, msg := stringField(v, "content")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	replyTo, msg := optionalInt64Field(v, "replyTo")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	forwardedFrom, msg := optionalInt64Field(v, "forwardedFrom")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.store.CreateMessage(r.Context(), conversationID, senderID, content, replyTo, forwardedFrom)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeID(w, http.StatusCreated, id)
}

// getMessages handles HTTP requests on "/messages/get" endpoint.
// "limit" and "cursor" are optional; "cursor" is the opaque watermark from a
// previous page's nextCursor.
func (h *handler) getMessages(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, viewerID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	limit := 0
	if v.Exists("limit") {
		l, err := v.Get("limit").Int64()
		if err != nil || l < 1 {
			http.Error(w, "Field \"limit\" must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = int(l)
	}

	var cursor time.Time
	if v.Exists("cursor") {
		c, err := v.Get("cursor").Int64()
		if err != nil || c < 1 {
			http.Error(w, "Field \"cursor\" must be a positive integer", http.StatusBadRequest)
			return
		}
		cursor = time.Unix(0, c)
	}

	page, err := h.store.MessagesByConversationID(r.Context(), conversationID, viewerID, limit, cursor)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// editMessage handles HTTP requests on "/messages/edit" endpoint
func (h *handler) editMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	messageID, userID, msg := messageAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	content, msg := stringField(v, "content")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.EditMessage(r.Context(), messageID, userID, content); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// deleteMessage handles HTTP requests on "/messages/delete" endpoint
// (delete for everyone)
func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	messageID, userID, msg := messageAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteMessage(r.Context(), messageID, userID); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// hideMessage handles HTTP requests on "/messages/hide" endpoint
// (delete for me)
func (h *handler) hideMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	messageID, userID, msg := messageAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.HideMessage(r.Context(), messageID, userID); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// toggleReaction handles HTTP requests on "/messages/react" endpoint
func (h *handler) toggleReaction(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	messageID, userID, msg := messageAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	emoji, msg := stringField(v, "emoji")
	if msg == "" && emoji == "" {
		msg = "Field \"emoji\" must have non-zero length"
	}
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleReaction(r.Context(), messageID, userID, emoji); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// unreadCount handles HTTP requests on "/messages/unread" endpoint
func (h *handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, userID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	count, err := h.store.UnreadCount(r.Context(), conversationID, userID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func messageAndUser(v *fastjson.Value) (int64, int64, string) {
	messageID, msg := int64Field(v, "message")
	if msg != "" {
		return 0, 0, msg
	}

	userID, msg := int64Field(v, "user")
	if msg != "" {
		return 0, 0, msg
	}

	return messageID, userID, ""
}
