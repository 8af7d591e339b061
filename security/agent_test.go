package security_test

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Agent", func() {
	var (
		alice, bob, carol models.User
		datasetID         string
	)

	BeforeEach(func() {
		alice = newUser("alice@example.com")
		bob = newUser("bob@example.com")
		carol = newUser("carol@example.com")
		datasetID = newDataset()
	})

	rolesOf := func(u models.User) permission.RoleSet {
		rs, err := agent.UserRoleSet(ctx, u.ID)
		Expect(err).ToNot(HaveOccurred())
		return rs
	}
	canAccess := func(u models.User) bool {
		ok, err := agent.CanAccessDataset(ctx, rolesOf(u), datasetID)
		Expect(err).ToNot(HaveOccurred())
		return ok
	}
	canManage := func(u models.User) bool {
		ok, err := agent.CanManageDataset(ctx, rolesOf(u), datasetID)
		Expect(err).ToNot(HaveOccurred())
		return ok
	}
	grants := func() permission.Grants {
		g, err := agent.GetDatasetPermissions(ctx, datasetID)
		Expect(err).ToNot(HaveOccurred())
		return g
	}
	privateRole := func(u models.User) *models.Role {
		r, err := agent.GetPrivateUserRole(ctx, u, true)
		Expect(err).ToNot(HaveOccurred())
		return r
	}

	Describe("GetPrivateUserRole", func() {
		It("Should return nil without auto-create when the user has no private role", func() {
			r, err := agent.GetPrivateUserRole(ctx, alice, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(BeNil())
		})
		It("Should create the private role once and return it on every later call", func() {
			r := privateRole(alice)
			Expect(r.Type).To(Equal(models.RoleTypePrivate))
			Expect(r.Name).To(Equal("alice@example.com"))
			Expect(r.Description).To(Equal("Private Role for alice@example.com"))
			Expect(*r.OwnerUserID).To(Equal(alice.ID))
			Expect(rolesOf(alice).Has(r.ID)).To(BeTrue())

			again, err := agent.GetPrivateUserRole(ctx, alice, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(again.ID).To(Equal(r.ID))
			Expect(privateRole(alice).ID).To(Equal(r.ID))
			Expect(rolesOf(alice)).To(HaveLen(1))
		})
		It("Should converge on one role under concurrent auto-create", func() {
			const n = 16
			ids := make([]string, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					r, err := agent.GetPrivateUserRole(ctx, bob, true)
					Expect(err).ToNot(HaveOccurred())
					ids[i] = r.ID
				}(i)
			}
			wg.Wait()
			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}
			Expect(rolesOf(bob)).To(HaveLen(1))
		})
		It("Should fail for an unknown user", func() {
			_, err := agent.GetPrivateUserRole(ctx, models.User{ID: "ghost"}, true)
			Expect(errors.Is(err, security.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Default policies", func() {
		It("Should allow access and deny manage on a fresh dataset", func() {
			Expect(canAccess(alice)).To(BeTrue())
			Expect(canManage(alice)).To(BeFalse())
			ok, err := agent.CanAccessDataset(ctx, permission.NewRoleSet(), datasetID)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			public, err := agent.DatasetIsPublic(ctx, datasetID)
			Expect(err).ToNot(HaveOccurred())
			Expect(public).To(BeTrue())
		})
		It("Should report unknown datasets", func() {
			_, err := agent.CanAccessDataset(ctx, rolesOf(alice), "missing")
			Expect(errors.Is(err, security.ErrNotFound)).To(BeTrue())
			err = agent.MakeDatasetPublic(ctx, "missing")
			Expect(errors.Is(err, security.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("PrivatelyShareDataset", func() {
		It("Should restrict access to exactly the listed users", func() {
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice, bob})).To(Succeed())
			Expect(canAccess(alice)).To(BeTrue())
			Expect(canAccess(bob)).To(BeTrue())
			Expect(canAccess(carol)).To(BeFalse())

			g := grants()
			Expect(g.RolesFor(permission.DatasetAccess)).To(ConsistOf(privateRole(alice).ID, privateRole(bob).ID))
		})
		It("Should be idempotent", func() {
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			first := grants()
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			Expect(grants()).To(Equal(first))
		})
		It("Should restrict access to nobody for an empty user list", func() {
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, nil)).To(Succeed())
			Expect(canAccess(alice)).To(BeFalse())
			Expect(grants().Restricted(permission.DatasetAccess)).To(BeTrue())
			public, err := agent.DatasetIsPublic(ctx, datasetID)
			Expect(err).ToNot(HaveOccurred())
			Expect(public).To(BeFalse())
		})
		It("Should not grant manage permissions", func() {
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{bob})).To(Succeed())
			Expect(canManage(bob)).To(BeFalse())
			Expect(grants().Restricted(permission.DatasetManagePermissions)).To(BeFalse())
		})
		It("Should leave existing manage grants in place", func() {
			owner := privateRole(alice)
			Expect(agent.SetDatasetPermission(ctx, datasetID, permission.DatasetManagePermissions, []models.Role{*owner})).To(Succeed())
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{bob})).To(Succeed())
			Expect(canManage(alice)).To(BeTrue())
			Expect(canAccess(alice)).To(BeFalse())
		})
		It("Should roll back every change when one user fails", func() {
			err := agent.PrivatelyShareDataset(ctx, datasetID, []models.User{carol, {ID: "ghost"}})
			Expect(errors.Is(err, security.ErrNotFound)).To(BeTrue())
			r, err := agent.GetPrivateUserRole(ctx, carol, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(BeNil())
			Expect(grants()).To(BeEmpty())
		})
	})

	Describe("MakeDatasetPublic", func() {
		It("Should lift the access restriction and keep manage grants", func() {
			owner := privateRole(alice)
			Expect(agent.SetDatasetPermission(ctx, datasetID, permission.DatasetManagePermissions, []models.Role{*owner})).To(Succeed())
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			Expect(canAccess(carol)).To(BeFalse())

			Expect(agent.MakeDatasetPublic(ctx, datasetID)).To(Succeed())
			Expect(canAccess(carol)).To(BeTrue())
			Expect(canManage(alice)).To(BeTrue())
			Expect(agent.MakeDatasetPublic(ctx, datasetID)).To(Succeed())
		})
	})

	Describe("SetDatasetPermission", func() {
		It("Should replace a single action kind", func() {
			staff, err := db.CreateRole(ctx, "staff", "", models.RoleTypeShared, bob.ID, carol.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(agent.SetDatasetPermission(ctx, datasetID, permission.DatasetAccess, []models.Role{*staff})).To(Succeed())
			Expect(canAccess(bob)).To(BeTrue())
			Expect(canAccess(alice)).To(BeFalse())

			Expect(agent.SetDatasetPermission(ctx, datasetID, permission.DatasetAccess, []models.Role{*privateRole(alice)})).To(Succeed())
			Expect(canAccess(alice)).To(BeTrue())
			Expect(canAccess(bob)).To(BeFalse())
		})
		It("Should reject roles without ids and unknown actions", func() {
			err := agent.SetDatasetPermission(ctx, datasetID, permission.DatasetAccess, []models.Role{{Name: "unsaved"}})
			Expect(errors.Is(err, security.ErrInvalidRole)).To(BeTrue())
			err = agent.SetDatasetPermission(ctx, datasetID, permission.Action{Name: "teleport"}, nil)
			Expect(errors.Is(err, security.ErrUnknownAction)).To(BeTrue())
		})
	})

	Describe("SetAllDatasetPermissions", func() {
		It("Should replace every record and leave omitted kinds unrestricted", func() {
			owner := privateRole(alice)
			reader := privateRole(bob)
			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"access":             {*reader, *owner},
				"manage permissions": {*owner},
			})).To(Succeed())
			Expect(canAccess(bob)).To(BeTrue())
			Expect(canAccess(carol)).To(BeFalse())
			Expect(canManage(alice)).To(BeTrue())

			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"access": {*reader},
			})).To(Succeed())
			Expect(canManage(alice)).To(BeFalse())
			Expect(grants().Names()).To(Equal([]string{"access"}))

			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, nil)).To(Succeed())
			Expect(grants()).To(BeEmpty())
			Expect(canAccess(carol)).To(BeTrue())
		})
		It("Should fail on an unknown action before writing anything", func() {
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			before := grants()
			err := agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"access":  {*privateRole(bob)},
				"destroy": {*privateRole(bob)},
			})
			Expect(errors.Is(err, security.ErrUnknownAction)).To(BeTrue())
			Expect(grants()).To(Equal(before))
		})
		It("Should accept action names in any case", func() {
			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"ACCESS": {},
			})).To(Succeed())
			Expect(canAccess(alice)).To(BeFalse())
		})
	})

	Describe("DatasetIsPrivateToUser", func() {
		It("Should hold only when access is restricted to exactly the user's private role", func() {
			private := func(u models.User) bool {
				ok, err := agent.DatasetIsPrivateToUser(ctx, u, datasetID)
				Expect(err).ToNot(HaveOccurred())
				return ok
			}
			Expect(private(alice)).To(BeFalse())

			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			Expect(private(alice)).To(BeTrue())
			Expect(private(bob)).To(BeFalse())

			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice, bob})).To(Succeed())
			Expect(private(alice)).To(BeFalse())

			Expect(agent.MakeDatasetPublic(ctx, datasetID)).To(Succeed())
			Expect(private(alice)).To(BeFalse())
		})
	})

	Describe("AllowAction", func() {
		It("Should resolve action names through the registry", func() {
			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"ACCESS": {},
			})).To(Succeed())
			for _, name := range []string{"access", "ACCESS", " Access "} {
				ok, err := agent.AllowAction(ctx, rolesOf(alice), permission.Action{Name: name, Default: permission.DefaultAllow}, datasetID)
				Expect(err).ToNot(HaveOccurred())
				Expect(ok).To(BeFalse(), name)
			}
		})
		It("Should apply the registered default instead of the caller's", func() {
			ok, err := agent.AllowAction(ctx, rolesOf(alice), permission.Action{Name: "manage permissions", Default: permission.DefaultAllow}, datasetID)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
		It("Should reject unregistered actions", func() {
			_, err := agent.AllowAction(ctx, rolesOf(alice), permission.Action{Name: "fly"}, datasetID)
			Expect(errors.Is(err, security.ErrUnknownAction)).To(BeTrue())
		})
	})

	Describe("UserAllowedAction", func() {
		allowed := func(u models.User, action permission.Action) bool {
			ok, err := agent.UserAllowedAction(ctx, u.ID, action, datasetID)
			Expect(err).ToNot(HaveOccurred())
			return ok
		}

		It("Should follow the user's roles", func() {
			Expect(agent.SetAllDatasetPermissions(ctx, datasetID, map[string][]models.Role{
				"access":             {*privateRole(alice)},
				"manage permissions": {*privateRole(alice)},
			})).To(Succeed())
			Expect(allowed(alice, permission.DatasetManagePermissions)).To(BeTrue())
			Expect(allowed(bob, permission.DatasetManagePermissions)).To(BeFalse())
			Expect(allowed(bob, permission.DatasetAccess)).To(BeFalse())
		})
		It("Should let admins manage any dataset without granting access", func() {
			_, err := db.CreateRole(ctx, "admin", "", models.RoleTypeAdmin, carol.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())

			Expect(allowed(carol, permission.DatasetManagePermissions)).To(BeTrue())
			Expect(allowed(carol, permission.DatasetAccess)).To(BeFalse())
			Expect(allowed(bob, permission.DatasetManagePermissions)).To(BeFalse())

			_, err = agent.UserAllowedAction(ctx, carol.ID, permission.DatasetManagePermissions, "missing")
			Expect(errors.Is(err, security.ErrNotFound)).To(BeTrue())
		})
		It("Should ignore shared roles for the admin bypass", func() {
			_, err := db.CreateRole(ctx, "admins-in-name-only", "", models.RoleTypeShared, carol.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed(carol, permission.DatasetManagePermissions)).To(BeFalse())
		})
	})

	Describe("Grants cache", func() {
		var cache *memoryCache

		BeforeEach(func() {
			cache = newMemoryCache()
			agent = security.NewAgent(db, security.WithGrantsCache(cache, time.Minute))
		})

		It("Should read through and invalidate on mutation", func() {
			Expect(canAccess(alice)).To(BeTrue())
			Expect(cache.sets).To(Equal(1))
			Expect(canAccess(bob)).To(BeTrue())
			Expect(cache.hits).To(Equal(1))

			Expect(agent.PrivatelyShareDataset(ctx, datasetID, []models.User{alice})).To(Succeed())
			Expect(cache.invalidations).To(Equal(1))
			Expect(canAccess(bob)).To(BeFalse())
		})
		It("Should fall back to the store when the cache fails", func() {
			cache.broken = true
			Expect(canAccess(alice)).To(BeTrue())
			Expect(agent.MakeDatasetPublic(ctx, datasetID)).To(Succeed())
		})
	})
})

type memoryCache struct {
	mu                        sync.Mutex
	entries                   map[string]permission.Grants
	sets, hits, invalidations int
	broken                    bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]permission.Grants{}}
}

func (c *memoryCache) Get(_ context.Context, id string) (permission.Grants, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return nil, false, errors.New("cache down")
	}
	g, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return g, ok, nil
}

func (c *memoryCache) Set(_ context.Context, id string, g permission.Grants, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache down")
	}
	c.sets++
	c.entries[id] = g.Clone()
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache down")
	}
	c.invalidations++
	delete(c.entries, id)
	return nil
}
