package server

import (
	"io/ioutil"
	"net/http"
)

// syncUser handles HTTP requests on "/users/sync" endpoint.
// It upserts the user record from the identity provider's profile.
func (h *handler) syncUser(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	clerkID, msg := stringField(v, "clerkId")
	if msg == "" && clerkID == "" {
		msg = "Field \"clerkId\" must have non-zero length"
	}
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	name, msg := stringField(v, "name")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	email, msg := stringField(v, "email")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	avatarURL, msg := stringField(v, "avatarUrl")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.store.SyncUser(r.Context(), clerkID, name, email, avatarURL)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeID(w, http.StatusCreated, id)
}

// getUser handles HTTP requests on "/users/get" endpoint
func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	clerkID, msg := stringField(v, "clerkId")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	user, err := h.store.UserByClerkID(r.Context(), clerkID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// listUsers handles HTTP requests on "/users/list" endpoint.
// It returns the user directory excluding the requesting user.
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := int64Field(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	users, err := h.store.ListUsers(r.Context(), userID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, users)
}

// updateProfile handles HTTP requests on "/users/profile/update" endpoint
func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	clerkID, msg := stringField(v, "clerkId")
	if msg == "" && clerkID == "" {
		msg = "Field \"clerkId\" must have non-zero length"
	}
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	name, msg := stringField(v, "name")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	email, msg := stringField(v, "email")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	avatarURL, msg := stringField(v, "avatarUrl")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.store.UpdateProfile(r.Context(), clerkID, name, email, avatarURL)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeID(w, http.StatusOK, id)
}
