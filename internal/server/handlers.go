package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"messenger-backend/internal/storage"
)

// TODO limit reading from body

type parsers struct {
	usersPool         fastjson.ParserPool
	conversationsPool fastjson.ParserPool
	messagesPool      fastjson.ParserPool
	presencePool      fastjson.ParserPool
}

type handler struct {
	logger  *zap.SugaredLogger
	store   *storage.Store
	parsers parsers
}

// int64Field extracts a required positive 64-bit integer field.
// The second return value is a client-facing error message, empty on success.
func int64Field(v *fastjson.Value, name string) (int64, string) {
	if !v.Exists(name) {
		return 0, "Missing Field \"" + name + "\""
	}

	id, err := v.Get(name).Int64()
	if err != nil {
		return 0, "Field \"" + name + "\" must be a 64-bit integer value"
	}

	if id < 1 {
		return 0, "Field \"" + name + "\" must be a valid id greater than zero"
	}

	return id, ""
}

// optionalInt64Field extracts a positive 64-bit integer field that may be absent
func optionalInt64Field(v *fastjson.Value, name string) (*int64, string) {
	if !v.Exists(name) {
		return nil, ""
	}

	id, msg := int64Field(v, name)
	if msg != "" {
		return nil, msg
	}

	return &id, ""
}

// stringField extracts a required string field; emptiness is left to the caller
func stringField(v *fastjson.Value, name string) (string, string) {
	if !v.Exists(name) {
		return "", "Missing Field \"" + name + "\""
	}

	sv := v.Get(name)
	if sv.Type() != fastjson.TypeString {
		return "", "Field \"" + name + "\" must be a string"
	}

	b, _ := sv.StringBytes()
	return string(b), ""
}

// boolField extracts a required boolean field
func boolField(v *fastjson.Value, name string) (bool, string) {
	if !v.Exists(name) {
		return false, "Missing Field \"" + name + "\""
	}

	b, err := v.Get(name).Bool()
	if err != nil {
		return false, "Field \"" + name + "\" must be a boolean"
	}

	return b, ""
}

// storeError maps storage sentinel errors onto the HTTP error taxonomy:
// validation failures are 400, permission and window failures are 403,
// missing records are 404, anything else is logged and reported as 500
func (h *handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidContent):
		http.Error(w, "Message content must be non-empty and at most 1000 characters", http.StatusBadRequest)
	case errors.Is(err, storage.ErrEmptyName):
		http.Error(w, "Group name must have non-zero length", http.StatusBadRequest)
	case errors.Is(err, storage.ErrChatBadUsers):
		http.Error(w, "Bad users list", http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotAMember):
		http.Error(w, "Sender is not a conversation member", http.StatusForbidden)
	case errors.Is(err, storage.ErrNotMessageAuthor):
		http.Error(w, "Only the sender can modify a message", http.StatusForbidden)
	case errors.Is(err, storage.ErrMessageDeleted):
		http.Error(w, "Deleted messages can not be edited", http.StatusForbidden)
	case errors.Is(err, storage.ErrEditWindowExpired):
		http.Error(w, "Messages can only be edited within 5 minutes", http.StatusForbidden)
	case errors.Is(err, storage.ErrDeleteWindowExpired):
		http.Error(w, "Messages can only be deleted within 1 hour", http.StatusForbidden)
	case errors.Is(err, storage.ErrUserNotExist):
		http.Error(w, "User does not exist", http.StatusNotFound)
	case errors.Is(err, storage.ErrChatNotExist):
		http.Error(w, "Conversation does not exist", http.StatusNotFound)
	case errors.Is(err, storage.ErrMessageNotExist):
		http.Error(w, "Message does not exist", http.StatusNotFound)
	default:
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *handler) writeID(w http.ResponseWriter, status int, id int64) {
	payload := []byte(`{"id":` + strconv.FormatInt(id, 10) + `}`)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.logger.Errorf("writing payload to ResponseWriter: %v", err)
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

func (h *handler) writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"success":true}`)); err != nil {
		h.logger.Errorf("writing payload to ResponseWriter: %v", err)
	}
}
