// Package access is the capability check guarding privileged operations.
package access

import (
	"fmt"
	"sort"
	"sync"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Role is a capability that can be granted to accounts.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleEngagement Role = "engagement"
	RoleStaking    Role = "staking"
	RoleTreasurer  Role = "treasurer"
)

// Controller holds an owner and role grants. The owner holds every role.
type Controller struct {
	mu    sync.RWMutex
	owner models.Account
	roles map[Role]map[models.Account]bool
}

func NewController(owner models.Account) *Controller {
	return &Controller{owner: owner, roles: make(map[Role]map[models.Account]bool)}
}

func (c *Controller) Owner() models.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

func (c *Controller) HasRole(account models.Account, role Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return account == c.owner || c.roles[role][account]
}

// Require fails with ErrUnauthorized unless caller holds role.
func (c *Controller) Require(caller models.Account, role Role) error {
	if !c.HasRole(caller, role) {
		return fmt.Errorf("%w: %s lacks %s", rerrors.ErrUnauthorized, caller, role)
	}
	return nil
}

func (c *Controller) Grant(caller models.Account, role Role, account models.Account) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roles[role] == nil {
		c.roles[role] = make(map[models.Account]bool)
	}
	c.roles[role][account] = true
	return nil
}

func (c *Controller) Revoke(caller models.Account, role Role, account models.Account) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles[role], account)
	return nil
}

func (c *Controller) TransferOwnership(caller, next models.Account) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = next
	return nil
}

// Grants lists role holders, sorted, for persistence.
func (c *Controller) Grants() map[string][]models.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]models.Account)
	for role, holders := range c.roles {
		for a := range holders {
			out[string(role)] = append(out[string(role)], a)
		}
		sort.Slice(out[string(role)], func(i, j int) bool { return out[string(role)][i] < out[string(role)][j] })
	}
	return out
}

// Restore rebuilds a controller from persisted grants.
func Restore(owner models.Account, grants map[string][]models.Account) *Controller {
	c := NewController(owner)
	for role, holders := range grants {
		c.roles[Role(role)] = make(map[models.Account]bool, len(holders))
		for _, a := range holders {
			c.roles[Role(role)][a] = true
		}
	}
	return c
}
