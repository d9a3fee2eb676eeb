// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

package exodus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/types"
)

// Server exposes the exit service over HTTP. All endpoints answer the
// uniform {code, err_msg, data} envelope; business failures map to non-zero
// codes and never abort the server.
type Server struct {
	app  *AppData
	http *http.Server
}

// NewServer builds the router with CORS enabled for the public endpoints.
func NewServer(app *AppData, addr string) *Server {
	router := httprouter.New()
	s := &Server{app: app}

	router.GET("/contracts", s.handleContracts)
	router.GET("/tokens", s.handleTokens)
	router.GET("/recover_progress", s.handleRecoverProgress)
	router.GET("/running_max_task_id", s.handleRunningMaxTaskID)
	router.GET("/pending_tasks_count", s.handlePendingTasksCount)

	router.POST("/get_token", s.handleGetToken)
	router.POST("/get_stored_block_info", s.handleGetStoredBlockInfo)
	router.POST("/get_balances", s.handleGetBalances)
	router.POST("/get_unprocessed_priority_ops", s.handleGetUnprocessedPriorityOps)
	router.POST("/get_proofs_by_page", s.handleGetProofsByPage)
	router.POST("/get_proof_by_info", s.handleGetProofByInfo)
	router.POST("/get_proofs_by_token", s.handleGetProofsByToken)
	router.POST("/generate_proof_task_by_info", s.handleGenerateProofTaskByInfo)
	router.POST("/generate_proof_tasks_by_token", s.handleGenerateProofTasksByToken)
	router.POST("/get_proof_task_id", s.handleGetProofTaskID)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(router)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests.
func (s *Server) ListenAndServe() error {
	logger.Info("Exit server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Close shuts the listener down.
func (s *Server) Close() error { return s.http.Close() }

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("Failed to encode response", "err", err)
	}
}

func writeResult(w http.ResponseWriter, data interface{}, err error) {
	if err != nil {
		status := statusOf(err)
		if status == StatusInternalErr {
			logger.Error("Request failed", "err", err)
		}
		writeResponse(w, Err(status))
		return
	}
	writeResponse(w, Ok(data))
}

func decodeBody(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}

// guard rejects state-dependent requests until the snapshot is loaded.
func (s *Server) guard(w http.ResponseWriter) bool {
	if s.app.IsNotSyncCompleted() {
		writeResponse(w, Err(StatusRecoverStateUnfinished))
		return false
	}
	return true
}

func (s *Server) handleContracts(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeResult(w, s.app.Contracts, nil)
}

func (s *Server) handleTokens(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	writeResult(w, s.app.Tokens(), nil)
}

func (s *Server) handleRecoverProgress(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	progress, err := s.app.GetRecoverProgress()
	writeResult(w, progress, err)
}

func (s *Server) handleRunningMaxTaskID(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	id, err := s.app.RunningMaxTaskID()
	writeResult(w, id, err)
}

func (s *Server) handlePendingTasksCount(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	count, err := s.app.PendingTasksCount()
	writeResult(w, count, err)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req struct {
		TokenID types.TokenID `json:"token_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	token, err := s.app.GetToken(req.TokenID)
	writeResult(w, token, err)
}

func (s *Server) handleGetStoredBlockInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req struct {
		ChainID types.ChainID `json:"chain_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	info, err := s.app.GetStoredBlockInfo(req.ChainID)
	writeResult(w, info, err)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req struct {
		Address common.Address `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	balances, err := s.app.GetBalances(req.Address)
	writeResult(w, balances, err)
}

func (s *Server) handleGetUnprocessedPriorityOps(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req struct {
		ChainID      types.ChainID `json:"chain_id"`
		LastSerialID int64         `json:"last_serial_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	ops, err := s.app.GetUnprocessedPriorityOps(req.ChainID, req.LastSerialID)
	writeResult(w, ops, err)
}

func (s *Server) handleGetProofsByPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req struct {
		Page int64 `json:"page"`
		Num  int64 `json:"num"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	proofs, err := s.app.GetProofsByPage(req.Page, req.Num)
	writeResult(w, proofs, err)
}

func (s *Server) handleGetProofByInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req prover.ExitInfo
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	proof, err := s.app.GetProof(req)
	writeResult(w, proof, err)
}

func (s *Server) handleGetProofsByToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req BatchExitRequest
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	proofs, err := s.app.GetProofs(req)
	writeResult(w, proofs, err)
}

func (s *Server) handleGenerateProofTaskByInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req prover.ExitInfo
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	taskID, err := s.app.GenerateProofTask(req)
	writeResult(w, taskID, err)
}

func (s *Server) handleGenerateProofTasksByToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req BatchExitRequest
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	tasks, err := s.app.GenerateProofTasks(req)
	writeResult(w, tasks, err)
}

func (s *Server) handleGetProofTaskID(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.guard(w) {
		return
	}
	var req prover.ExitInfo
	if err := decodeBody(r, &req); err != nil {
		writeResponse(w, Err(StatusInternalErr))
		return
	}
	taskID, err := s.app.GetProofTaskID(req)
	writeResult(w, taskID, err)
}
