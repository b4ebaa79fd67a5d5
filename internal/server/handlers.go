package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"pirserve/internal/apierr"
	"pirserve/internal/catalog"
	"pirserve/internal/integrity"
	"pirserve/internal/pir"
)

type moduleView struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Topic          string `json:"topic"`
	Tier           int    `json:"tier"`
	ChunkCount     int    `json:"chunk_count"`
	CompressedSize int64  `json:"compressed_size"`
	Filename       string `json:"filename"`
}

func newModuleView(m catalog.Module) moduleView {
	return moduleView{
		ID:             m.ID,
		Title:          m.Title,
		Topic:          m.Topic,
		Tier:           m.Tier,
		ChunkCount:     m.ChunkCount,
		CompressedSize: m.CompressedSize,
		Filename:       m.Filename,
	}
}

type questionView struct {
	ID           int64    `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// listLoadedModules returns catalog modules narrowed to those currently
// present in the chunk cache, so a row whose chunks have not finished
// loading (or were orphaned by a crash) never appears in a client-facing
// listing.
func (s *Server) listLoadedModules(r *http.Request) ([]moduleView, error) {
	modules, err := s.store.ListModules(r.Context(), catalog.ModuleFilter{})
	if err != nil {
		return nil, err
	}
	loaded := make(map[int64]bool)
	for _, id := range s.cache.Current().Order() {
		loaded[id] = true
	}
	views := make([]moduleView, 0, len(modules))
	for _, m := range modules {
		if loaded[m.ID] {
			views = append(views, newModuleView(m))
		}
	}
	return views, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GhostID string `json:"ghost_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GhostID == "" {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	token, err := s.sessions.Create(body.GhostID)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var filter catalog.ModuleFilter
	filter.Topic = r.URL.Query().Get("topic")
	if tierStr := r.URL.Query().Get("tier"); tierStr != "" {
		tier, err := strconv.Atoi(tierStr)
		if err != nil {
			apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
			return
		}
		filter.Tier = &tier
	}

	modules, err := s.store.ListModules(r.Context(), filter)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	loaded := make(map[int64]bool)
	for _, id := range s.cache.Current().Order() {
		loaded[id] = true
	}
	views := make([]moduleView, 0, len(modules))
	for _, m := range modules {
		if loaded[m.ID] {
			views = append(views, newModuleView(m))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": views})
}

func (s *Server) handleKPIR(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token      string       `json:"token"`
		Vectors    []byteVector `json:"vectors"`
		ChunkIndex int          `json:"chunk_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, errByteRange) {
			apierr.Write(w, apierr.New(apierr.RequestSemantics, err.Error()))
			return
		}
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}
	if !s.sessions.Validate(body.Token) {
		apierr.Write(w, apierr.New(apierr.SessionInvalid, "unknown or expired session token"))
		return
	}

	vectors := make([][]byte, len(body.Vectors))
	for i, v := range body.Vectors {
		vectors[i] = v
	}

	engine := pir.New(s.cache.Current())
	responses, err := engine.Compute(vectors, body.ChunkIndex)
	if err != nil {
		if errors.Is(err, pir.ErrEmptyCache) {
			apierr.Write(w, apierr.New(apierr.ServiceUnavailable, err.Error()))
			return
		}
		apierr.Write(w, apierr.New(apierr.RequestSemantics, err.Error()))
		return
	}

	views := make([]byteVector, len(responses))
	for i, r := range responses {
		views[i] = r
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": views})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	moduleID, err1 := strconv.ParseInt(r.URL.Query().Get("module_id"), 10, 64)
	chunkIdx, err2 := strconv.Atoi(r.URL.Query().Get("chunk_index"))
	if err1 != nil || err2 != nil {
		apierr.Write(w, apierr.New(apierr.NotFound, "module or chunk not found"))
		return
	}

	hash, err := integrity.Hash(s.cache.Current(), moduleID, chunkIdx)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hash": hash})
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(r.PathValue("module_id"), 10, 64)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	questions, err := s.store.ListQuiz(r.Context(), moduleID)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	views := make([]questionView, len(questions))
	for i, q := range questions {
		views[i] = questionView{ID: q.ID, Question: q.Question, Options: q.Options, CorrectIndex: q.CorrectIndex}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": views})
}

func (s *Server) adminKeyValid(candidate string) bool {
	if len(candidate) != len(s.adminSecret) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1
}

// adminKeyFromRequest reads the admin key from the X-Admin-Key header, the
// teacher-style convenience path, falling back to an already-parsed form or
// body value supplied by the caller.
func (s *Server) adminKeyFromRequest(r *http.Request, bodyKey string) string {
	if h := r.Header.Get("X-Admin-Key"); h != "" {
		return h
	}
	return bodyKey
}

func (s *Server) handleAdminUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	key := s.adminKeyFromRequest(r, r.FormValue("admin_key"))
	if !s.adminKeyValid(key) {
		apierr.Write(w, apierr.ErrAuthMissing)
		return
	}

	title := r.FormValue("title")
	topic := r.FormValue("topic")
	tier, err := strconv.Atoi(r.FormValue("tier"))
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	result, err := s.ingester.Process(r.Context(), data, title, topic, tier, header.Filename)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	modules, err := s.listLoadedModules(r)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"module_id": result.ModuleID,
		"modules":   modules,
	})
}

func (s *Server) handleAdminDeleteModule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	var body struct {
		AdminKey string `json:"admin_key"`
	}
	json.NewDecoder(r.Body).Decode(&body) // a missing body still allows header-based auth.

	if !s.adminKeyValid(s.adminKeyFromRequest(r, body.AdminKey)) {
		apierr.Write(w, apierr.ErrAuthMissing)
		return
	}

	found, err := s.store.DeleteModule(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if !found {
		apierr.Write(w, apierr.ErrNotFound)
		return
	}
	if err := os.RemoveAll(s.dir.ModuleDir(id)); err != nil {
		s.logger.Warn("failed to remove chunk directory after delete", "module_id", id, "error", err)
	}
	if err := s.cache.Reload(r.Context()); err != nil {
		apierr.Write(w, err)
		return
	}

	modules, err := s.listLoadedModules(r)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "modules": modules})
}

func (s *Server) handleAdminAddQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AdminKey string   `json:"admin_key"`
		ModuleID int64    `json:"module_id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Correct  int      `json:"correct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}
	if !s.adminKeyValid(s.adminKeyFromRequest(r, body.AdminKey)) {
		apierr.Write(w, apierr.ErrAuthMissing)
		return
	}

	id, err := s.store.AddQuiz(r.Context(), body.ModuleID, body.Question, body.Options, body.Correct)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			apierr.Write(w, apierr.ErrNotFound)
		case errors.Is(err, catalog.ErrConstraint):
			apierr.Write(w, apierr.New(apierr.RequestSemantics, "quiz options or correct index invalid"))
		default:
			apierr.Write(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "question_id": id})
}

func (s *Server) handleAdminDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apierr.Write(w, apierr.New(apierr.RequestShape, "malformed request body"))
		return
	}

	var body struct {
		AdminKey string `json:"admin_key"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	if !s.adminKeyValid(s.adminKeyFromRequest(r, body.AdminKey)) {
		apierr.Write(w, apierr.ErrAuthMissing)
		return
	}

	found, err := s.store.DeleteQuiz(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if !found {
		apierr.Write(w, apierr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
