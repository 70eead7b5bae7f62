package access_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"royalty-dag/access"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

func TestRequireAndGrant(t *testing.T) {
	c := access.NewController("owner")
	require.NoError(t, c.Require("owner", access.RoleStaking))
	require.ErrorIs(t, c.Require("vault", access.RoleStaking), rerrors.ErrUnauthorized)

	require.ErrorIs(t, c.Grant("vault", access.RoleStaking, "vault"), rerrors.ErrUnauthorized)
	require.NoError(t, c.Grant("owner", access.RoleStaking, "vault"))
	require.NoError(t, c.Require("vault", access.RoleStaking))
	require.ErrorIs(t, c.Require("vault", access.RoleOwner), rerrors.ErrUnauthorized)

	restored := access.Restore(c.Owner(), c.Grants())
	require.True(t, restored.HasRole("vault", access.RoleStaking))

	require.NoError(t, c.Revoke("owner", access.RoleStaking, "vault"))
	require.False(t, c.HasRole("vault", access.RoleStaking))
}

func TestTransferOwnership(t *testing.T) {
	c := access.NewController("owner")
	require.NoError(t, c.TransferOwnership("owner", "next"))
	require.Equal(t, models.Account("next"), c.Owner())
	require.ErrorIs(t, c.Require("owner", access.RoleOwner), rerrors.ErrUnauthorized)
}
