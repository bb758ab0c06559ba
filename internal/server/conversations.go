package server

import (
	"io/ioutil"
	"net/http"

	"github.com/valyala/fastjson"
)

// directConversation handles HTTP requests on "/conversations/direct" endpoint.
// Repeated calls for the same pair, in either order, return the same id.
func (h *handler) directConversation(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.conversationsPool.Get()
	defer h.parsers.conversationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userA, msg := int64Field(v, "userA")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	userB, msg := int64Field(v, "userB")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.store.GetOrCreateDirectConversation(r.Context(), userA, userB)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeID(w, http.StatusOK, id)
}

// groupConversation handles HTTP requests on "/conversations/group" endpoint
func (h *handler) groupConversation(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.conversationsPool.Get()
	defer h.parsers.conversationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	creator, msg := int64Field(v, "creator")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	name, msg := stringField(v, "name")
	if msg == "" && name == "" {
		msg = "Field \"name\" must have non-zero length"
	}
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if !v.Exists("members") {
		http.Error(w, "Missing Field \"members\"", http.StatusBadRequest)
		return
	}

	memberValues, err := v.Get("members").Array()
	if err != nil {
		http.Error(w, "Field \"members\" must be an array", http.StatusBadRequest)
		return
	}

	memberIDs := make([]int64, 0, len(memberValues))
	for _, mv := range memberValues {
		memberID, err := mv.Int64()
		if err != nil {
			http.Error(w, "Each item in \"members\" array field must be a 64-bit integer value", http.StatusBadRequest)
			return
		}

		if memberID < 1 {
			http.Error(w, "Each integer in \"members\" array must be a valid user id greater than zero", http.StatusBadRequest)
			return
		}
		memberIDs = append(memberIDs, memberID)
	}

	id, err := h.store.CreateGroupConversation(r.Context(), creator, memberIDs, name)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeID(w, http.StatusCreated, id)
}

// listConversations handles HTTP requests on "/conversations/list" endpoint
func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.conversationsPool.Get()
	defer h.parsers.conversationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := int64Field(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	summaries, err := h.store.ConversationsByUserID(r.Context(), userID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// getConversation handles HTTP requests on "/conversations/get" endpoint
func (h *handler) getConversation(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.conversationsPool.Get()
	defer h.parsers.conversationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, viewerID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	detail, err := h.store.ConversationByID(r.Context(), conversationID, viewerID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

// markRead handles HTTP requests on "/conversations/read" endpoint
func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.conversationsPool.Get()
	defer h.parsers.conversationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	conversationID, userID, msg := conversationAndUser(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.MarkConversationRead(r.Context(), conversationID, userID); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeOK(w)
}

// conversationAndUser extracts the ("conversation", "user") id pair shared by
// several endpoints
func conversationAndUser(v *fastjson.Value) (int64, int64, string) {
	conversationID, msg := int64Field(v, "conversation")
	if msg != "" {
		return 0, 0, msg
	}

	userID, msg := int64Field(v, "user")
	if msg != "" {
		return 0, 0, msg
	}

	return conversationID, userID, ""
}
