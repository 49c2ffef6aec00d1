package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/txn2/gamedna/pkg/configstore"
)

// configListResponse wraps a paginated list of configs.
type configListResponse struct {
	Data     []*configstore.Config `json:"data"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// actorRequest is the body of POST /configs/{id}/publish.
type actorRequest struct {
	Actor string `json:"actor"`
}

// rollbackRequest is the body of POST /configs/{id}/rollback.
type rollbackRequest struct {
	Version int64  `json:"version"`
	Actor   string `json:"actor"`
}

// cloneRequest is the body of POST /configs/{id}/clone.
type cloneRequest struct {
	Name  string `json:"name"`
	Actor string `json:"actor"`
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set and leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// createConfig handles POST /api/v1/configs.
//
// @Summary      Create config
// @Description  Stores a new config and records it as version 1.
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Param        body  body      configstore.Config  true  "Config"
// @Success      201   {object}  configstore.Config
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /configs [post]
func (h *Handler) createConfig(w http.ResponseWriter, r *http.Request) {
	var cfg configstore.Config
	if err := decodeBody(w, r, &cfg, false); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	out, err := h.store.Create(r.Context(), &cfg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// listConfigs handles GET /api/v1/configs.
//
// @Summary      List configs
// @Description  Returns configs newest first, filtered and paginated.
// @Tags         Configs
// @Produce      json
// @Param        genre      query  string  false  "Exact genre"
// @Param        name       query  string  false  "Case-insensitive name substring"
// @Param        tags       query  string  false  "Comma-separated tags, all required"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        page_size  query  int     false  "Page size (default 10, max 100)"
// @Success      200  {object}  configListResponse
// @Failure      400  {object}  errorResponse
// @Router       /configs [get]
func (h *Handler) listConfigs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"))
	if err != nil {
		badRequest(w, r, "invalid page: "+err.Error())
		return
	}
	pageSize, err := queryInt(q.Get("page_size"))
	if err != nil {
		badRequest(w, r, "invalid page_size: "+err.Error())
		return
	}

	filters := configstore.ListFilters{
		Genre:        q.Get("genre"),
		NameContains: q.Get("name"),
		Tags:         splitTags(q.Get("tags")),
	}
	pagination := configstore.Pagination{Page: page, PageSize: pageSize}.Normalize()

	configs, total, err := h.store.List(r.Context(), filters, pagination)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if configs == nil {
		configs = []*configstore.Config{}
	}

	writeJSON(w, http.StatusOK, configListResponse{
		Data:     configs,
		Total:    total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	})
}

// getConfig handles GET /api/v1/configs/{id}.
//
// @Summary      Get config
// @Tags         Configs
// @Produce      json
// @Param        id  path  string  true  "Config ID"
// @Success      200  {object}  configstore.Config
// @Failure      404  {object}  errorResponse
// @Router       /configs/{id} [get]
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Read(r.Context(), r.PathValue(pathParamID))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// updateConfig handles PUT /api/v1/configs/{id}.
//
// @Summary      Update config
// @Description  Replaces an unlocked config and records the next version.
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Config ID"
// @Param        body  body  configstore.Config  true  "Config"
// @Success      200  {object}  configstore.Config
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      423  {object}  errorResponse
// @Router       /configs/{id} [put]
func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg configstore.Config
	if err := decodeBody(w, r, &cfg, false); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	cfg.ID = r.PathValue(pathParamID)

	out, err := h.store.Update(r.Context(), &cfg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// deleteConfig handles DELETE /api/v1/configs/{id}.
//
// @Summary      Delete config
// @Description  Removes a config and its whole version history.
// @Tags         Configs
// @Param        id  path  string  true  "Config ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /configs/{id} [delete]
func (h *Handler) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue(pathParamID)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publishConfig handles POST /api/v1/configs/{id}/publish.
//
// @Summary      Publish config
// @Description  Locks a config. Locked configs reject update and rollback.
// @Tags         Versions
// @Accept       json
// @Produce      json
// @Param        id    path  string        true   "Config ID"
// @Param        body  body  actorRequest  false  "Actor"
// @Success      200  {object}  configstore.Config
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /configs/{id}/publish [post]
func (h *Handler) publishConfig(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	cfg, err := h.store.PublishVersion(r.Context(), r.PathValue(pathParamID), req.Actor)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// listVersions handles GET /api/v1/configs/{id}/versions.
//
// @Summary      Version history
// @Description  Returns every snapshot of a config, newest first.
// @Tags         Versions
// @Produce      json
// @Param        id  path  string  true  "Config ID"
// @Success      200  {array}   configstore.VersionSnapshot
// @Failure      404  {object}  errorResponse
// @Router       /configs/{id}/versions [get]
func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.GetVersionHistory(r.Context(), r.PathValue(pathParamID))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// rollbackConfig handles POST /api/v1/configs/{id}/rollback.
//
// @Summary      Roll back config
// @Description  Restores a snapshot and records it as a new version.
// @Tags         Versions
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "Config ID"
// @Param        body  body  rollbackRequest  true  "Target version"
// @Success      200  {object}  configstore.Config
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      423  {object}  errorResponse
// @Router       /configs/{id}/rollback [post]
func (h *Handler) rollbackConfig(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.Version < 1 {
		badRequest(w, r, "version must be a positive integer")
		return
	}

	cfg, err := h.store.RollbackToVersion(r.Context(), r.PathValue(pathParamID), req.Version, req.Actor)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// cloneConfig handles POST /api/v1/configs/{id}/clone.
//
// @Summary      Clone config
// @Description  Copies a config into a new unlocked config with its own history.
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Param        id    path  string        true  "Source config ID"
// @Param        body  body  cloneRequest  true  "Clone name"
// @Success      201  {object}  configstore.Config
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /configs/{id}/clone [post]
func (h *Handler) cloneConfig(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, r, "name is required")
		return
	}

	cfg, err := h.store.Clone(r.Context(), r.PathValue(pathParamID), req.Name, req.Actor)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for tag := range strings.SplitSeq(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
