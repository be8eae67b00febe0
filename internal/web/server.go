// Package web exposes the gateway's operations over a JSON HTTP API.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"strata/internal/authz"
	"strata/internal/gateway"
	"strata/internal/store"
)

// Server wires the gateway behind authenticated JSON endpoints.
type Server struct {
	gw     *gateway.Gateway
	engine authz.Engine
	gate   authz.Gate
}

func NewServer(gw *gateway.Gateway, engine authz.Engine, gate authz.Gate) *Server {
	if engine == nil {
		engine = &authz.AnonymousEngine{}
	}
	if gate == nil {
		gate = authz.AllowAll{}
	}
	return &Server{gw: gw, engine: engine, gate: gate}
}

// Handler returns the routed HTTP handler, wrapped in the standard
// middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/browse", s.handleBrowse)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/download", s.handleDownload)
	mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	mux.HandleFunc("POST /api/rename", s.handleRename)
	mux.HandleFunc("POST /api/delete", s.handleDeleteMultiple)
	mux.HandleFunc("POST /api/delete-folder", s.handleDeleteFolder)
	mux.HandleFunc("POST /api/uploads", s.handleStartUpload)
	mux.HandleFunc("POST /api/uploads/presign-part", s.handlePresignPart)
	mux.HandleFunc("POST /api/uploads/complete", s.handleCompleteUpload)
	mux.HandleFunc("POST /api/uploads/abort", s.handleAbortUpload)
	mux.HandleFunc("GET /healthz", handleHealthz)

	return Recoverer(LogRequest(Authenticate(s.engine, mux)))
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allow rejects the request with 403 unless the actor may perform op.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, op string) bool {
	actor := authz.ActorFromContext(r.Context())
	if !s.gate.ActorMayPerform(actor, op) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "actor may not perform this operation")
		return false
	}
	return true
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpRead) {
		return
	}
	res, err := s.gw.Browse(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpRead) {
		return
	}
	res, err := s.gw.FolderSize(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpRead) {
		return
	}
	u, err := s.gw.PresignDownload(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	created, err := s.gw.CreateFolder(r.Context(), req.Path)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": created})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path string `json:"path"`
		gateway.RenameRequest
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.gw.Rename(r.Context(), req.Path, req.RenameRequest)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteMultiple(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpDelete) {
		return
	}
	var req struct {
		Paths []string `json:"paths"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, string(gateway.KindValidation), "no paths given")
		return
	}
	res, err := s.gw.DeleteMultiple(r.Context(), req.Paths)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpDelete) {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.gw.DeleteFolder(r.Context(), req.Path)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path string `json:"path"`
		gateway.UploadRequest
	}
	if !decode(w, r, &req) {
		return
	}
	plan, err := s.gw.StartUpload(r.Context(), req.Path, req.UploadRequest)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handlePresignPart(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path       string `json:"path"`
		UploadID   string `json:"upload_id"`
		PartNumber int    `json:"part_number"`
	}
	if !decode(w, r, &req) {
		return
	}
	u, err := s.gw.PresignPart(r.Context(), req.Path, req.UploadID, req.PartNumber)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path     string `json:"path"`
		UploadID string `json:"upload_id"`
		Parts    []struct {
			PartNumber int    `json:"part_number"`
			ETag       string `json:"etag"`
		} `json:"parts"`
	}
	if !decode(w, r, &req) {
		return
	}
	parts := make([]store.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, store.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	res, err := s.gw.CompleteUpload(r.Context(), req.Path, req.UploadID, parts)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAbortUpload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, authz.OpWrite) {
		return
	}
	var req struct {
		Path     string `json:"path"`
		UploadID string `json:"upload_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.gw.AbortUpload(r.Context(), req.Path, req.UploadID); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, string(gateway.KindValidation), "malformed request body")
		return false
	}
	return true
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: msg}})
}

// writeGatewayError maps a gateway failure to a transport status code.
func writeGatewayError(w http.ResponseWriter, err error) {
	kind := gateway.KindOf(err)

	status := http.StatusBadGateway
	switch kind {
	case gateway.KindInvalidPath, gateway.KindValidation:
		status = http.StatusBadRequest
	case gateway.KindNotFound:
		status = http.StatusNotFound
	case gateway.KindPreconditionFailed:
		status = http.StatusPreconditionFailed
	}

	msg := err.Error()
	var ge *gateway.Error
	if errors.As(err, &ge) {
		msg = ge.Msg
	}
	writeError(w, status, string(kind), msg)
}
