package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/forgo/exitlane/api/internal/model"
)

// maxJSONBody bounds request bodies decoded by DecodeJSON
const maxJSONBody = 1 << 20

// DataResponse wraps a single resource with optional HATEOAS links
type DataResponse struct {
	Data  any               `json:"data"`
	Links map[string]string `json:"_links,omitempty"`
}

// CollectionResponse wraps a list with optional pagination
type CollectionResponse struct {
	Data       any               `json:"data"`
	Pagination *PaginationInfo   `json:"pagination,omitempty"`
	Links      map[string]string `json:"_links,omitempty"`
}

// PaginationInfo carries either a cursor (browse, messages) or the next
// offset (admin queues). HasMore is always set.
type PaginationInfo struct {
	Cursor     string `json:"cursor,omitempty"`
	NextOffset *int   `json:"next_offset,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a single resource
func WriteData(w http.ResponseWriter, status int, data any, links map[string]string) {
	WriteJSON(w, status, DataResponse{Data: data, Links: links})
}

// WriteCollection writes a list. A nil slice is sent as [] so clients never
// have to special-case null.
func WriteCollection(w http.ResponseWriter, status int, data any, pagination *PaginationInfo, links map[string]string) {
	if v := reflect.ValueOf(data); data == nil || (v.Kind() == reflect.Slice && v.IsNil()) {
		data = []struct{}{}
	}
	WriteJSON(w, status, CollectionResponse{Data: data, Pagination: pagination, Links: links})
}

// WriteError writes an RFC 9457 problem response
func WriteError(w http.ResponseWriter, err *model.ProblemDetails) {
	err.WriteJSON(w)
}

// DecodeJSON decodes a single JSON object from the request body into v.
// Unknown fields, trailing data and bodies over 1 MiB are rejected.
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
