package access

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository/memory"
)

type world struct {
	store    *memory.Store
	resolver *Resolver
	owner    *models.User
	member   *models.User
	stranger *models.User
	org      *models.Organization
	userAcc  *models.Account
	orgAcc   *models.Account
	seq      int
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	w := &world{store: s}
	w.resolver = NewResolver(s.Accounts, s.Organizations, s.Projects)

	mk := func(name string) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Status: models.STATUS_ACTIVE}
		require.NoError(t, s.Users.Create(ctx, u))
		return u
	}
	w.owner, w.member, w.stranger = mk("owner"), mk("member"), mk("stranger")

	w.org = &models.Organization{Name: "acme"}
	require.NoError(t, s.Organizations.Create(ctx, w.org))

	var err error
	w.userAcc, err = models.NewUserAccount("owner", w.owner.ID)
	require.NoError(t, err)
	require.NoError(t, s.Accounts.Create(ctx, w.userAcc))
	w.orgAcc, err = models.NewOrgAccount("acme", w.org.ID)
	require.NoError(t, err)
	require.NoError(t, s.Accounts.Create(ctx, w.orgAcc))
	return w
}

func (w *world) project(t *testing.T, acc *models.Account, public bool) *models.Project {
	t.Helper()
	w.seq++
	p := &models.Project{Name: fmt.Sprintf("project-%d", w.seq), AccountID: acc.ID, Public: public}
	require.NoError(t, w.store.Projects.Create(context.Background(), p))
	return p
}

func (w *world) override(t *testing.T, user *models.User, p *models.Project, level *models.AccessLevel) {
	t.Helper()
	require.NoError(t, w.store.Projects.SetAccess(context.Background(), &models.ProjectAccess{
		UserID: user.ID, ProjectID: p.ID, Access: level,
	}))
}

func (w *world) membership(t *testing.T, user *models.User, role models.AccessLevel) {
	t.Helper()
	require.NoError(t, w.store.Organizations.UpsertMembership(context.Background(), &models.Membership{
		UserID: user.ID, OrgID: w.org.ID, Role: role,
	}))
}

func level(l models.AccessLevel) *models.AccessLevel { return &l }

func TestResolveDirectOwner(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.userAcc, false)

	g, err := w.resolver.Resolve(context.Background(), w.owner, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOwner, g.Level)
	assert.Same(t, p, g.Project)
}

func TestResolveOwnerBeatsOverride(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.userAcc, false)
	w.override(t, w.owner, p, level(models.AccessRead))

	g, err := w.resolver.Resolve(context.Background(), w.owner, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOwner, g.Level)
}

func TestResolveMembershipBeatsOverride(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.orgAcc, false)
	w.membership(t, w.member, models.AccessWrite)
	w.override(t, w.member, p, level(models.AccessAdmin))

	g, err := w.resolver.Resolve(context.Background(), w.member, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessWrite, g.Level)
}

func TestResolveMembershipPrecedenceForAllPairs(t *testing.T) {
	for _, role := range models.AccessLevels {
		for _, over := range models.AccessLevels {
			t.Run(role.String()+"/"+over.String(), func(t *testing.T) {
				w := newWorld(t)
				p := w.project(t, w.orgAcc, false)
				w.membership(t, w.member, role)
				w.override(t, w.member, p, level(over))

				g, err := w.resolver.Resolve(context.Background(), w.member, p)
				require.NoError(t, err)
				assert.Equal(t, role, g.Level)
			})
		}
	}
}

func TestResolveOverride(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.userAcc, false)
	w.override(t, w.stranger, p, level(models.AccessWrite))

	g, err := w.resolver.Resolve(context.Background(), w.stranger, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessWrite, g.Level)
}

func TestResolveClearedOverrideHidesPublicFallback(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.userAcc, true)
	w.override(t, w.stranger, p, nil)

	g, err := w.resolver.Resolve(context.Background(), w.stranger, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessNone, g.Level)
	assert.False(t, g.Allows(models.AccessRead))
}

func TestResolvePublicFallback(t *testing.T) {
	w := newWorld(t)
	public := w.project(t, w.userAcc, true)
	private := w.project(t, w.userAcc, false)

	tests := []struct {
		name    string
		user    *models.User
		project *models.Project
		want    models.AccessLevel
	}{
		{name: "anonymous public", user: nil, project: public, want: models.AccessRead},
		{name: "anonymous private", user: nil, project: private, want: models.AccessNone},
		{name: "stranger public", user: w.stranger, project: public, want: models.AccessRead},
		{name: "stranger private", user: w.stranger, project: private, want: models.AccessNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := w.resolver.Resolve(context.Background(), tt.user, tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Level)
		})
	}
}

func TestResolveNonMemberOfOrgFallsThrough(t *testing.T) {
	w := newWorld(t)
	p := w.project(t, w.orgAcc, false)

	g, err := w.resolver.Resolve(context.Background(), w.stranger, p)
	require.NoError(t, err)
	assert.Equal(t, models.AccessNone, g.Level)
}

func TestResolveMissingAccountIsAnError(t *testing.T) {
	w := newWorld(t)
	p := &models.Project{ID: 77, AccountID: 404}

	_, err := w.resolver.Resolve(context.Background(), w.owner, p)
	assert.Error(t, err)
}
