package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
)

func TestEngineAdminBypassesOwnership(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	admin := domain.Identity{SubjectID: "admin-1", Role: domain.RoleAdmin}

	ownerships := map[string]*Ownership{
		"owned by someone else": {ResourceID: "t1", OwnerID: "user-9"},
		"owned by admin":        {ResourceID: "t1", OwnerID: "admin-1"},
		"absent":                nil,
	}
	operations := []Operation{OpTaskCreate, OpTaskList, OpTaskRead, OpTaskUpdate, OpTaskDelete}

	for name, ownership := range ownerships {
		for _, op := range operations {
			verdict := engine.Decide(admin, op, ownership)
			require.True(t, verdict.Allowed, "%s / %s", name, op.Name)
			require.Equal(t, "admin-bypass", verdict.Rule)
		}
	}
}

func TestEngineStandardUser(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	user := domain.Identity{SubjectID: "user-1", Role: domain.RoleUser}

	t.Run("unscoped operations allowed", func(t *testing.T) {
		for _, op := range []Operation{OpTaskCreate, OpTaskList} {
			verdict := engine.Decide(user, op, nil)
			require.True(t, verdict.Allowed)
			require.Equal(t, "unscoped-operation", verdict.Rule)
		}
	})

	t.Run("owner allowed on own resource", func(t *testing.T) {
		own := &Ownership{ResourceID: "t1", OwnerID: "user-1"}
		for _, op := range []Operation{OpTaskRead, OpTaskUpdate, OpTaskDelete} {
			verdict := engine.Decide(user, op, own)
			require.True(t, verdict.Allowed)
			require.Equal(t, "owner", verdict.Rule)
		}
	})

	t.Run("missing resource denies NotFound, never Forbidden", func(t *testing.T) {
		for _, op := range []Operation{OpTaskRead, OpTaskUpdate, OpTaskDelete} {
			verdict := engine.Decide(user, op, nil)
			require.False(t, verdict.Allowed)
			require.Equal(t, DenyNotFound, verdict.Reason)
		}
	})

	t.Run("foreign resource denies Forbidden", func(t *testing.T) {
		own := &Ownership{ResourceID: "t1", OwnerID: "user-2"}
		for _, op := range []Operation{OpTaskRead, OpTaskUpdate, OpTaskDelete} {
			verdict := engine.Decide(user, op, own)
			require.False(t, verdict.Allowed)
			require.Equal(t, DenyForbidden, verdict.Reason)
		}
	})
}

func TestEngineRuleOrderingIsStable(t *testing.T) {
	t.Parallel()

	// a missing resource must fire the NotFound rule even though the
	// owner comparison would also mismatch
	engine := NewEngine()
	user := domain.Identity{SubjectID: "user-1", Role: domain.RoleUser}

	verdict := engine.Decide(user, OpTaskRead, nil)
	require.Equal(t, "resource-missing", verdict.Rule)
	require.Equal(t, DenyNotFound, verdict.Reason)
}
