package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"royalty-dag/content"
	"royalty-dag/dag"
	rerrors "royalty-dag/errors"
	"royalty-dag/logger"
	"royalty-dag/models"
)

// Handler contains the HTTP handlers for the royalty graph API
type Handler struct {
	Graph *dag.Graph
}

// NewHandler creates and returns a new Handler instance
func NewHandler(g *dag.Graph) *Handler {
	return &Handler{Graph: g}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case stderrors.Is(err, rerrors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, rerrors.ErrUnauthorized):
		return http.StatusForbidden
	case stderrors.Is(err, rerrors.ErrNoIncomingAmount),
		stderrors.Is(err, rerrors.ErrNoAdditionalAmount),
		stderrors.Is(err, rerrors.ErrNoPendingRequest),
		stderrors.Is(err, rerrors.ErrLockInterval):
		return http.StatusConflict
	case stderrors.Is(err, rerrors.ErrInsufficientBalance),
		stderrors.Is(err, rerrors.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, rerrors.ErrConfiguration),
		stderrors.Is(err, rerrors.ErrDuplicate),
		stderrors.Is(err, rerrors.ErrTokenNotApproved),
		stderrors.Is(err, rerrors.ErrBelowMinimum):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Logger.Error(msg, zap.Error(err))
	} else {
		logger.Logger.Warn(msg, zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Logger.Error("Failed to decode request", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return false
	}
	return true
}

type tokenRequest struct {
	ID models.TokenID `json:"id"`
}

// RegisterToken handles POST /tokens
func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Graph.RegisterToken(req.ID)
	if err != nil {
		writeError(w, "Failed to register token", err)
		return
	}
	writeJSON(w, http.StatusCreated, t.Snapshot())
}

type mintRequest struct {
	To     models.Account `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

// MintToken handles POST /tokens/{id}/mint
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	id := models.TokenID(mux.Vars(r)["id"])
	if err := h.Graph.MintToken(id, req.To, req.Amount); err != nil {
		writeError(w, "Failed to mint token", err)
		return
	}
	bal, _ := h.Graph.BalanceOf(id, req.To)
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": req.To, "balance": bal})
}

type approveRequest struct {
	Owner   models.Account `json:"owner"`
	Spender models.Account `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}

// ApproveSpend handles POST /tokens/{id}/approve
func (h *Handler) ApproveSpend(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Graph.ApproveSpend(models.TokenID(mux.Vars(r)["id"]), req.Owner, req.Spender, req.Amount); err != nil {
		writeError(w, "Failed to approve spender", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Allowance set"})
}

// GetBalance handles GET /tokens/{id}/balances/{account}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bal, err := h.Graph.BalanceOf(models.TokenID(vars["id"]), models.Account(vars["account"]))
	if err != nil {
		writeError(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": vars["account"], "balance": bal})
}

type weighted struct {
	Account models.Account `json:"account"`
	Weight  *uint256.Int   `json:"weight"`
}

type nodeRequest struct {
	ID          string             `json:"id"`
	Owner       models.Account     `json:"owner"`
	Proportions models.Proportions `json:"proportions"`
	Creators    []weighted         `json:"creators"`
	Primaries   []weighted         `json:"primaries"`
	Tokens      []models.TokenID   `json:"tokens"`
}

func (req nodeRequest) config() content.Config {
	cfg := content.Config{
		ID:          req.ID,
		Owner:       req.Owner,
		Proportions: req.Proportions,
		Tokens:      req.Tokens,
	}
	for _, c := range req.Creators {
		cfg.Creators = append(cfg.Creators, c.Account)
		cfg.CreatorShares = append(cfg.CreatorShares, c.Weight)
	}
	for _, p := range req.Primaries {
		cfg.Primaries = append(cfg.Primaries, p.Account)
		cfg.PrimaryShares = append(cfg.PrimaryShares, p.Weight)
	}
	return cfg
}

// AddNode handles POST requests to create new content nodes
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.Graph.AddNode(req.config())
	if err != nil {
		writeError(w, "Failed to add node", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Node added successfully",
		"node":    n.Snapshot(),
	})
}

// GetNode handles GET /nodes/{id}
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.Graph.Node(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "Failed to get node", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node":  n.Snapshot(),
		"edges": n.Edges(),
	})
}

type primaryRequest struct {
	Caller  models.Account `json:"caller"`
	Primary string         `json:"primary"`
	Weight  *uint256.Int   `json:"weight"`
}

// AddPrimary handles POST /nodes/{id}/primaries
func (h *Handler) AddPrimary(w http.ResponseWriter, r *http.Request) {
	var req primaryRequest
	if !decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.Graph.AddPrimary(req.Caller, id, req.Primary, req.Weight); err != nil {
		writeError(w, "Failed to add primary", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Primary added", "node": id, "primary": req.Primary})
}

type proportionsRequest struct {
	Caller      models.Account     `json:"caller"`
	Proportions models.Proportions `json:"proportions"`
}

// SetProportions handles PUT /nodes/{id}/proportions
func (h *Handler) SetProportions(w http.ResponseWriter, r *http.Request) {
	var req proportionsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Graph.SetProportions(req.Caller, mux.Vars(r)["id"], req.Proportions); err != nil {
		writeError(w, "Failed to set proportions", err)
		return
	}
	writeJSON(w, http.StatusOK, req.Proportions)
}

type distributeRequest struct {
	Caller models.Account `json:"caller"`
	Token  models.TokenID `json:"token"`
	Amount *uint256.Int   `json:"amount"`
}

// Distribute handles POST /nodes/{id}/distribute
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Graph.Distribute(req.Caller, mux.Vars(r)["id"], req.Token, req.Amount); err != nil {
		writeError(w, "Failed to distribute", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Distributed", "amount": req.Amount})
}

// ForceClaimAll handles POST /nodes/{id}/force-claim
func (h *Handler) ForceClaimAll(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !decode(w, r, &req) {
		return
	}
	moved, err := h.Graph.ForceClaimAll(mux.Vars(r)["id"], req.Token)
	if err != nil {
		writeError(w, "Failed to force claim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"amount": moved})
}

type claimRequest struct {
	Account  models.Account   `json:"account"`
	Token    models.TokenID   `json:"token"`
	Mode     models.ClaimMode `json:"mode"`
	MaxSteps int              `json:"max_steps"`
}

// Claim handles POST /nodes/{id}/claims/{class}
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	paid, err := h.Graph.Claim(vars["id"], models.ClaimClass(vars["class"]), req.Account, req.Token, req.Mode, req.MaxSteps)
	if err != nil {
		writeError(w, "Failed to claim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": req.Account, "amount": paid})
}

// GetClaimable handles GET /nodes/{id}/claims/{class}/{account}?token=
func (h *Handler) GetClaimable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tok := models.TokenID(r.URL.Query().Get("token"))
	amount, err := h.Graph.Claimable(vars["id"], models.ClaimClass(vars["class"]), models.Account(vars["account"]), tok)
	if err != nil {
		writeError(w, "Failed to read claimable amount", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": vars["account"], "claimable": amount})
}

// Settle handles POST /nodes/{id}/settle
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !decode(w, r, &req) {
		return
	}
	allocated, err := h.Graph.Settle(req.Token, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "Failed to settle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"allocated": allocated})
}

// GetHighestReceivedNode handles GET requests for the node that received the most of ?token=
func (h *Handler) GetHighestReceivedNode(w http.ResponseWriter, r *http.Request) {
	n, total, err := h.Graph.HighestReceivedNode(models.TokenID(r.URL.Query().Get("token")))
	if err != nil {
		writeError(w, "Failed to get highest received node", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "highest received node",
		"node":     n.ID(),
		"received": total,
	})
}

// ValidateConsistency reports graph inconsistencies, 409 when any exist
func (h *Handler) ValidateConsistency(w http.ResponseWriter, r *http.Request) {
	issues := h.Graph.Validate()
	if len(issues) > 0 {
		logger.Logger.Warn("Graph inconsistent", zap.Strings("issues", issues))
		writeJSON(w, http.StatusConflict, map[string]interface{}{"consistent": false, "issues": issues})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"consistent": true})
}

// Checkpoint handles POST /sync/checkpoint
func (h *Handler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Graph.Checkpoint()
	if err != nil {
		writeError(w, "Failed to write checkpoint", err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

// GetLatestCheckpoint handles GET /sync/checkpoint
func (h *Handler) GetLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Graph.LatestCheckpoint()
	if err != nil {
		writeError(w, "Failed to read checkpoint", err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

type stakeRequest struct {
	Account models.Account `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

// Stake handles POST /nodes/{id}/stake
func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Graph.Stake(mux.Vars(r)["id"], req.Account, req.Amount); err != nil {
		writeError(w, "Failed to stake", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"account": req.Account, "pending": req.Amount})
}

// AcceptStake handles POST /nodes/{id}/stake/accept
func (h *Handler) AcceptStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	minted, err := h.Graph.AcceptStake(mux.Vars(r)["id"], req.Account)
	if err != nil {
		writeError(w, "Failed to accept stake", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": req.Account, "shares": minted})
}

// RequestPayback handles POST /nodes/{id}/payback
func (h *Handler) RequestPayback(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Graph.RequestPayback(mux.Vars(r)["id"], req.Account, req.Amount); err != nil {
		writeError(w, "Failed to request payback", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"account": req.Account, "pending": req.Amount})
}

// AcceptPayback handles POST /nodes/{id}/payback/accept
func (h *Handler) AcceptPayback(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	paid, err := h.Graph.AcceptPayback(mux.Vars(r)["id"], req.Account)
	if err != nil {
		writeError(w, "Failed to accept payback", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": req.Account, "amount": paid})
}

type engagementRequest struct {
	Account models.Account `json:"account"`
	Count   *uint256.Int   `json:"count"`
}

// RecordEngagement handles POST /nodes/{id}/engagement
func (h *Handler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if !decode(w, r, &req) {
		return
	}
	minted, err := h.Graph.RecordEngagement(mux.Vars(r)["id"], req.Account, req.Count)
	if err != nil {
		writeError(w, "Failed to record engagement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": req.Account, "shares": minted})
}
