package repository

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"royalty-dag/db"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

const (
	nodePrefix       = "node:"
	tokenPrefix      = "token:"
	checkpointPrefix = "checkpoint:"
)

// It abstracts the storage layer from the business logic
type NodeRepositoryInterface interface {
	PutNode(node *models.NodeState) error
	GetNode(id string) (*models.NodeState, error)
	GetAllNodes() ([]*models.NodeState, error)
	PutToken(tok *models.TokenState) error
	GetAllTokens() ([]*models.TokenState, error)
	// PutState writes tokens and nodes as one unit.
	PutState(tokens []*models.TokenState, nodes []*models.NodeState) error
	PutCheckpoint(cp *models.Checkpoint) error
	GetLatestCheckpoint() (*models.Checkpoint, error)
}

// NodeRepository implements the NodeRepositoryInterface using LevelDB as the storage backend
type NodeRepository struct {
	db *db.LevelDB
}

// NewNodeRepository creates and returns a new NodeRepository instance
func NewNodeRepository(db *db.LevelDB) *NodeRepository {
	return &NodeRepository{db: db}
}

// PutNode stores a node state under node:<id>
func (r *NodeRepository) PutNode(node *models.NodeState) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return r.db.Put([]byte(nodePrefix+node.ID), data)
}

// GetNode retrieves a node state by its ID
func (r *NodeRepository) GetNode(id string) (*models.NodeState, error) {
	data, err := r.db.Get([]byte(nodePrefix + id))
	if stderrors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: node %s", rerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var node models.NodeState
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetAllNodes retrieves every stored node state
func (r *NodeRepository) GetAllNodes() ([]*models.NodeState, error) {
	iter := r.db.NewPrefixIterator(nodePrefix)
	defer iter.Release()

	var nodes []*models.NodeState
	for iter.Next() {
		var node models.NodeState
		if err := json.Unmarshal(iter.Value(), &node); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node)
	}
	return nodes, iter.Error()
}

func (r *NodeRepository) PutToken(tok *models.TokenState) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return r.db.Put([]byte(tokenPrefix+string(tok.ID)), data)
}

func (r *NodeRepository) GetAllTokens() ([]*models.TokenState, error) {
	iter := r.db.NewPrefixIterator(tokenPrefix)
	defer iter.Release()

	var tokens []*models.TokenState
	for iter.Next() {
		var tok models.TokenState
		if err := json.Unmarshal(iter.Value(), &tok); err != nil {
			return nil, err
		}
		tokens = append(tokens, &tok)
	}
	return tokens, iter.Error()
}

// PutState stores tokens and nodes in a single LevelDB batch
func (r *NodeRepository) PutState(tokens []*models.TokenState, nodes []*models.NodeState) error {
	puts := make(map[string][]byte, len(tokens)+len(nodes))
	for _, tok := range tokens {
		data, err := json.Marshal(tok)
		if err != nil {
			return err
		}
		puts[tokenPrefix+string(tok.ID)] = data
	}
	for _, node := range nodes {
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		puts[nodePrefix+node.ID] = data
	}
	return r.db.WriteBatch(puts)
}

// Creates a new checkpoint of the graph's distribution totals
func (r *NodeRepository) PutCheckpoint(cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return r.db.Put([]byte(checkpointPrefix+cp.ID), data)
}

// Retrieves the most recent checkpoint, nil when none was written
func (r *NodeRepository) GetLatestCheckpoint() (*models.Checkpoint, error) {
	iter := r.db.NewPrefixIterator(checkpointPrefix)
	defer iter.Release()

	var latest *models.Checkpoint
	for iter.Next() {
		var cp models.Checkpoint
		if err := json.Unmarshal(iter.Value(), &cp); err != nil {
			return nil, err
		}
		if latest == nil || cp.Timestamp > latest.Timestamp {
			latest = &cp
		}
	}
	return latest, iter.Error()
}
