package repository_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"royalty-dag/content"
	"royalty-dag/db"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/repository"
	"royalty-dag/token"
)

func openRepo(t *testing.T) *repository.NodeRepository {
	ldb, err := db.NewLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })
	return repository.NewNodeRepository(ldb)
}

func TestNodeRoundTrip(t *testing.T) {
	repo := openRepo(t)
	n, err := content.New(content.Config{
		ID:            "A",
		Owner:         "owner",
		Proportions:   models.Proportions{Creators: 6000, Primaries: 3000},
		Creators:      []models.Account{"alice", "bob"},
		CreatorShares: []*uint256.Int{uint256.NewInt(1), uint256.NewInt(2)},
		Tokens:        []models.TokenID{"RBT"},
	})
	require.NoError(t, err)
	tok := token.NewLedger("RBT")
	require.NoError(t, tok.Mint("owner", uint256.NewInt(900)))
	require.NoError(t, tok.Approve("owner", n.Address(), uint256.NewInt(900)))
	require.NoError(t, n.Distribute("owner", tok, uint256.NewInt(900)))

	require.NoError(t, repo.PutState([]*models.TokenState{tok.Snapshot()}, []*models.NodeState{n.Snapshot()}))

	got, err := repo.GetNode("A")
	require.NoError(t, err)
	require.Equal(t, n.Snapshot(), got)

	nodes, err := repo.GetAllNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	tokens, err := repo.GetAllTokens()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	restored, err := token.RestoreLedger(tokens[0])
	require.NoError(t, err)
	require.Equal(t, uint64(540), restored.BalanceOf(content.RightAddress("A", models.ClassCreators)).Uint64())

	_, err = repo.GetNode("missing")
	require.ErrorIs(t, err, rerrors.ErrNotFound)
}

func TestPrefixesKeepKindsApart(t *testing.T) {
	repo := openRepo(t)
	require.NoError(t, repo.PutToken(token.NewLedger("A").Snapshot()))
	require.NoError(t, repo.PutCheckpoint(&models.Checkpoint{ID: "cp", Timestamp: 1}))

	nodes, err := repo.GetAllNodes()
	require.NoError(t, err)
	require.Empty(t, nodes)
	tokens, err := repo.GetAllTokens()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
}

func TestLatestCheckpoint(t *testing.T) {
	repo := openRepo(t)
	cp, err := repo.GetLatestCheckpoint()
	require.NoError(t, err)
	require.Nil(t, cp)

	for i, id := range []string{"b", "c", "a"} {
		require.NoError(t, repo.PutCheckpoint(&models.Checkpoint{ID: id, Timestamp: int64(10 - i)}))
	}
	cp, err = repo.GetLatestCheckpoint()
	require.NoError(t, err)
	require.Equal(t, "b", cp.ID)
}
