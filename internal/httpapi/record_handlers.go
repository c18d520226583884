package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notabene.org/internal/audit"
	"notabene.org/internal/auth"
	"notabene.org/internal/records"
)

type auditResponse struct {
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedOn      time.Time `json:"createdOn"`
	LastModifiedBy string    `json:"lastModifiedBy,omitempty"`
	LastModifiedOn time.Time `json:"lastModifiedOn"`
}

func toAuditResponse(a records.Audit) auditResponse {
	return auditResponse{
		CreatedBy:      a.CreatedBy,
		CreatedOn:      a.CreatedOn,
		LastModifiedBy: a.LastModifiedBy,
		LastModifiedOn: a.LastModifiedOn,
	}
}

// --- Lookup types ---------------------------------------------------------

type lookupTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type lookupTypeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	auditResponse
}

func toLookupTypeResponse(lt *records.LookupType) lookupTypeResponse {
	return lookupTypeResponse{
		ID:            lt.ID,
		Name:          lt.Name,
		Description:   lt.Description,
		auditResponse: toAuditResponse(lt.Audit),
	}
}

func (a *API) handleLookupTypesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermLookupTypesView) {
			return
		}
		list, err := a.deps.Records.ListLookupTypes(r.Context())
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		out := make([]lookupTypeResponse, 0, len(list))
		for _, lt := range list {
			out = append(out, toLookupTypeResponse(lt))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermLookupTypesCreate) {
			return
		}
		var req lookupTypeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		lt, err := a.deps.Records.CreateLookupType(r.Context(), actor(r), req.Name, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup_type.create", map[string]any{"id": lt.ID, "name": lt.Name})
		w.Header().Set("Location", fmt.Sprintf("/v1/lookup-types/%s", lt.ID))
		writeJSON(w, http.StatusCreated, toLookupTypeResponse(lt))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLookupTypeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/lookup-types/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		a.handleLookupType(w, r, id)
	case len(parts) == 2 && parts[1] == "lookups":
		a.handleLookupsByType(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleLookupType(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermLookupTypesView) {
			return
		}
		lt, err := a.deps.Records.GetLookupType(r.Context(), id)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toLookupTypeResponse(lt))
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermLookupTypesUpdate) {
			return
		}
		var req lookupTypeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		lt, err := a.deps.Records.UpdateLookupType(r.Context(), actor(r), id, req.Name, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup_type.update", map[string]any{"id": id})
		writeJSON(w, http.StatusOK, toLookupTypeResponse(lt))
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermLookupTypesDelete) {
			return
		}
		if err := a.deps.Records.DeleteLookupType(r.Context(), id); err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup_type.delete", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Lookups --------------------------------------------------------------

type lookupRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type lookupResponse struct {
	ID           string `json:"id"`
	LookupTypeID string `json:"lookupTypeId"`
	Name         string `json:"name"`
	Value        string `json:"value,omitempty"`
	auditResponse
}

func toLookupResponse(l *records.Lookup) lookupResponse {
	return lookupResponse{
		ID:            l.ID,
		LookupTypeID:  l.LookupTypeID,
		Name:          l.Name,
		Value:         l.Value,
		auditResponse: toAuditResponse(l.Audit),
	}
}

func (a *API) handleLookupsByType(w http.ResponseWriter, r *http.Request, lookupTypeID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermLookupsView) {
			return
		}
		list, err := a.deps.Records.ListLookups(r.Context(), lookupTypeID)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		out := make([]lookupResponse, 0, len(list))
		for _, l := range list {
			out = append(out, toLookupResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermLookupsCreate) {
			return
		}
		var req lookupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l, err := a.deps.Records.CreateLookup(r.Context(), actor(r), lookupTypeID, req.Name, req.Value)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup.create", map[string]any{"id": l.ID, "lookup_type_id": lookupTypeID})
		w.Header().Set("Location", fmt.Sprintf("/v1/lookups/%s", l.ID))
		writeJSON(w, http.StatusCreated, toLookupResponse(l))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLookupResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/lookups/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermLookupsUpdate) {
			return
		}
		var req lookupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l, err := a.deps.Records.UpdateLookup(r.Context(), actor(r), id, req.Name, req.Value)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup.update", map[string]any{"id": id})
		writeJSON(w, http.StatusOK, toLookupResponse(l))
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermLookupsDelete) {
			return
		}
		if err := a.deps.Records.DeleteLookup(r.Context(), id); err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "lookup.delete", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

// --- Bookmarks ------------------------------------------------------------

type bookmarkRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type bookmarkResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	auditResponse
}

func toBookmarkResponse(b *records.Bookmark) bookmarkResponse {
	return bookmarkResponse{
		ID:            b.ID,
		Title:         b.Title,
		URL:           b.URL,
		Description:   b.Description,
		auditResponse: toAuditResponse(b.Audit),
	}
}

func (a *API) handleBookmarksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermBookmarksView) {
			return
		}
		list, err := a.deps.Records.ListBookmarks(r.Context())
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		out := make([]bookmarkResponse, 0, len(list))
		for _, b := range list {
			out = append(out, toBookmarkResponse(b))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermBookmarksCreate) {
			return
		}
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		b, err := a.deps.Records.CreateBookmark(r.Context(), actor(r), req.Title, req.URL, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "bookmark.create", map[string]any{"id": b.ID})
		w.Header().Set("Location", fmt.Sprintf("/v1/bookmarks/%s", b.ID))
		writeJSON(w, http.StatusCreated, toBookmarkResponse(b))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBookmarkResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/bookmarks/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermBookmarksView) {
			return
		}
		b, err := a.deps.Records.GetBookmark(r.Context(), id)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookmarkResponse(b))
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermBookmarksUpdate) {
			return
		}
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		b, err := a.deps.Records.UpdateBookmark(r.Context(), actor(r), id, req.Title, req.URL, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "bookmark.update", map[string]any{"id": id})
		writeJSON(w, http.StatusOK, toBookmarkResponse(b))
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermBookmarksDelete) {
			return
		}
		if err := a.deps.Records.DeleteBookmark(r.Context(), id); err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "bookmark.delete", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Snippets -------------------------------------------------------------

type snippetRequest struct {
	Title       string `json:"title"`
	Language    string `json:"language"`
	Body        string `json:"body"`
	Description string `json:"description"`
}

type snippetResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Language    string `json:"language,omitempty"`
	Body        string `json:"body"`
	Description string `json:"description,omitempty"`
	auditResponse
}

func toSnippetResponse(sn *records.Snippet) snippetResponse {
	return snippetResponse{
		ID:            sn.ID,
		Title:         sn.Title,
		Language:      sn.Language,
		Body:          sn.Body,
		Description:   sn.Description,
		auditResponse: toAuditResponse(sn.Audit),
	}
}

func (a *API) handleSnippetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermSnippetsView) {
			return
		}
		list, err := a.deps.Records.ListSnippets(r.Context())
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		out := make([]snippetResponse, 0, len(list))
		for _, sn := range list {
			out = append(out, toSnippetResponse(sn))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermSnippetsCreate) {
			return
		}
		var req snippetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sn, err := a.deps.Records.CreateSnippet(r.Context(), actor(r), req.Title, req.Language, req.Body, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "snippet.create", map[string]any{"id": sn.ID})
		w.Header().Set("Location", fmt.Sprintf("/v1/snippets/%s", sn.ID))
		writeJSON(w, http.StatusCreated, toSnippetResponse(sn))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSnippetResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/snippets/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermSnippetsView) {
			return
		}
		sn, err := a.deps.Records.GetSnippet(r.Context(), id)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSnippetResponse(sn))
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermSnippetsUpdate) {
			return
		}
		var req snippetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sn, err := a.deps.Records.UpdateSnippet(r.Context(), actor(r), id, req.Title, req.Language, req.Body, req.Description)
		if err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "snippet.update", map[string]any{"id": id})
		writeJSON(w, http.StatusOK, toSnippetResponse(sn))
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermSnippetsDelete) {
			return
		}
		if err := a.deps.Records.DeleteSnippet(r.Context(), id); err != nil {
			handleRecordError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "snippet.delete", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func handleRecordError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, records.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
