package routers

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"royalty-dag/handlers"
)

// RegisterRoutes sets up all the HTTP routes for the royalty graph
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {
	r.HandleFunc("/tokens", h.RegisterToken).Methods("POST")
	r.HandleFunc("/tokens/{id}/mint", h.MintToken).Methods("POST")
	r.HandleFunc("/tokens/{id}/approve", h.ApproveSpend).Methods("POST")
	r.HandleFunc("/tokens/{id}/balances/{account}", h.GetBalance).Methods("GET")

	// Registered before /nodes/{id} so the literal path wins
	r.HandleFunc("/nodes/highest-received", h.GetHighestReceivedNode).Methods("GET")

	r.HandleFunc("/nodes", h.AddNode).Methods("POST")
	r.HandleFunc("/nodes/{id}", h.GetNode).Methods("GET")
	r.HandleFunc("/nodes/{id}/primaries", h.AddPrimary).Methods("POST")
	r.HandleFunc("/nodes/{id}/proportions", h.SetProportions).Methods("PUT")
	r.HandleFunc("/nodes/{id}/distribute", h.Distribute).Methods("POST")
	r.HandleFunc("/nodes/{id}/force-claim", h.ForceClaimAll).Methods("POST")
	r.HandleFunc("/nodes/{id}/claims/{class}", h.Claim).Methods("POST")
	r.HandleFunc("/nodes/{id}/claims/{class}/{account}", h.GetClaimable).Methods("GET")

	r.HandleFunc("/nodes/{id}/stake", h.Stake).Methods("POST")
	r.HandleFunc("/nodes/{id}/stake/accept", h.AcceptStake).Methods("POST")
	r.HandleFunc("/nodes/{id}/payback", h.RequestPayback).Methods("POST")
	r.HandleFunc("/nodes/{id}/payback/accept", h.AcceptPayback).Methods("POST")
	r.HandleFunc("/nodes/{id}/engagement", h.RecordEngagement).Methods("POST")

	// Drains royalty from a node towards every upstream primary
	r.HandleFunc("/nodes/{id}/settle", h.Settle).Methods("POST")

	// Used for identifying graph state synchronization
	r.HandleFunc("/sync/validate", h.ValidateConsistency).Methods("GET")
	r.HandleFunc("/sync/checkpoint", h.Checkpoint).Methods("POST")
	r.HandleFunc("/sync/checkpoint", h.GetLatestCheckpoint).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
