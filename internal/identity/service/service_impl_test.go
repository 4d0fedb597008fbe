package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureProfileCreatesOnce(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	principal := domain.Principal{UserID: " auth0|abc ", Email: " Asha@Example.test ", Name: "Asha Rao"}
	first, err := env.Identity.EnsureProfile(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", first.UserID)
	assert.Equal(t, "asha@example.test", first.Email)
	assert.Equal(t, "Asha Rao", first.FullName)

	second, err := env.Identity.EnsureProfile(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.Identity.EnsureProfile(ctx, domain.Principal{UserID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPrincipal)
}

func TestEnsureProfileConvergesUnderConcurrency(t *testing.T) {
	env := testenv.New(t)

	const callers = 8
	ids := make([]snowflake.ID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profile, err := env.Identity.EnsureProfile(context.Background(), domain.Principal{UserID: "racer", Email: "racer@example.test"})
			errs[i] = err
			if err == nil {
				ids[i] = profile.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, env.DB.Model(&domain.Profile{}).Where("user_id = ?", "racer").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolve(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	loner, err := env.Identity.Resolve(ctx, domain.Principal{UserID: "loner", Email: "loner@example.test"})
	require.NoError(t, err)
	assert.False(t, loner.HasCompany())
	assert.Empty(t, loner.Role)
	_, err = loner.Company()
	assert.ErrorIs(t, err, domain.ErrNeedsCompany)

	manager, err := env.Identity.Resolve(ctx, domain.Principal{UserID: tenant.Manager.UserID})
	require.NoError(t, err)
	require.True(t, manager.HasCompany())
	assert.Equal(t, tenant.CompanyID, *manager.CompanyID)
	assert.Equal(t, domain.RoleManager, manager.Role)

	_, err = domain.Actor{}.Company()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
