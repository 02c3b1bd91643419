// Package storagetest holds the behavior every storage.Collection
// implementation must share, as a testify suite.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// CollectionSuite exercises a storage.Collection. Set NewCollection before
// running; it is called once per test and must return an empty collection.
type CollectionSuite struct {
	suite.Suite
	NewCollection func() storage.Collection

	coll storage.Collection
}

func (s *CollectionSuite) SetupTest() {
	s.Require().NotNil(s.NewCollection, "NewCollection must be set")
	s.coll = s.NewCollection()
	if p, ok := s.coll.(storage.Provisioner); ok {
		s.Require().NoError(p.EnsureCollection(context.Background()))
	}
}

func newAccount(name string) *domain.Account {
	a := domain.NewAccount()
	a.UserName = name
	a.Email = name + "@example.com"
	return a
}

// TestAddOrReplace covers insert and replace by id.
func (s *CollectionSuite) TestAddOrReplace() {
	ctx := context.Background()

	s.Run("stores a new account", func() {
		a := newAccount("alice")
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))

		found, ok, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(a.ID(), found.ID())
		s.Equal("alice", found.UserName)
	})

	s.Run("replaces an existing account", func() {
		a := newAccount("bob")
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))

		a.Email = "bobby@example.com"
		a.Roles = append(a.Roles, "admin")
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))

		found, ok, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal("bobby@example.com", found.Email)
		s.Equal([]string{"admin"}, found.Roles)
	})

	s.Run("rejects an account without an id", func() {
		err := s.coll.AddOrReplace(ctx, &domain.Account{UserName: "ghost"})
		s.Require().ErrorIs(err, domain.ErrMissingAccountID)

		var got []string
		for a, err := range s.coll.Scan(ctx, nil) {
			s.Require().NoError(err)
			got = append(got, a.UserName)
		}
		s.ElementsMatch([]string{"alice", "bob"}, got)
	})
}

// TestFindByKey covers point reads.
func (s *CollectionSuite) TestFindByKey() {
	ctx := context.Background()

	s.Run("returns absent for unknown id", func() {
		found, ok, err := s.coll.FindByKey(ctx, "missing")
		s.Require().NoError(err)
		s.False(ok)
		s.Nil(found)
	})

	s.Run("returns an independent copy", func() {
		a := newAccount("carol")
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))

		first, _, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		first.Roles = append(first.Roles, "admin")

		second, _, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		s.Empty(second.Roles)
	})

	s.Run("round trips every field", func() {
		end := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
		a := newAccount("dave")
		a.EmailConfirmed = true
		a.PhoneNumber = "+15550100"
		a.PhoneNumberConfirmed = true
		a.CredentialHash = "hash"
		a.SecurityStamp = "stamp"
		a.TwoFactorEnabled = true
		a.LockoutEnabled = true
		a.LockoutEndUTC = &end
		a.AccessFailedCount = 2
		a.Roles = []string{"admin", "user"}
		a.Claims = []domain.AccountClaim{{ClaimType: "dept", ClaimValue: "eng"}}
		a.Logins = []domain.AccountLogin{{LoginProvider: "google", ProviderKey: "g-1"}}
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))

		found, ok, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(a.PhoneNumber, found.PhoneNumber)
		s.True(found.PhoneNumberConfirmed)
		s.Equal("hash", found.CredentialHash)
		s.Equal("stamp", found.SecurityStamp)
		s.True(found.TwoFactorEnabled)
		s.Require().NotNil(found.LockoutEndUTC)
		s.True(end.Equal(*found.LockoutEndUTC))
		s.Equal(2, found.AccessFailedCount)
		s.Equal(a.Roles, found.Roles)
		s.Equal(a.Claims, found.Claims)
		s.Equal(a.Logins, found.Logins)
	})
}

// TestRemove covers deletion by id.
func (s *CollectionSuite) TestRemove() {
	ctx := context.Background()

	s.Run("removes a stored account", func() {
		a := newAccount("erin")
		s.Require().NoError(s.coll.AddOrReplace(ctx, a))
		s.Require().NoError(s.coll.Remove(ctx, a))

		_, ok, err := s.coll.FindByKey(ctx, a.ID())
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("fails with ErrNotFound for an unknown account", func() {
		err := s.coll.Remove(ctx, newAccount("ghost"))
		s.Require().ErrorIs(err, storage.ErrNotFound)
	})
}

// TestScan covers predicate scans.
func (s *CollectionSuite) TestScan() {
	ctx := context.Background()
	names := []string{"frank", "grace", "heidi"}
	for _, name := range names {
		s.Require().NoError(s.coll.AddOrReplace(ctx, newAccount(name)))
	}

	s.Run("nil predicate yields everything", func() {
		var got []string
		for a, err := range s.coll.Scan(ctx, nil) {
			s.Require().NoError(err)
			got = append(got, a.UserName)
		}
		s.ElementsMatch(names, got)
	})

	s.Run("predicate filters", func() {
		var got []string
		for a, err := range s.coll.Scan(ctx, func(a *domain.Account) bool { return a.UserName == "grace" }) {
			s.Require().NoError(err)
			got = append(got, a.UserName)
		}
		s.Equal([]string{"grace"}, got)
	})

	s.Run("stops when the consumer breaks", func() {
		count := 0
		for _, err := range s.coll.Scan(ctx, nil) {
			s.Require().NoError(err)
			count++
			break
		}
		s.Equal(1, count)

		// The collection stays usable after an abandoned scan.
		_, _, err := s.coll.FindByKey(ctx, "missing")
		s.Require().NoError(err)
	})

	s.Run("no match yields nothing", func() {
		for range s.coll.Scan(ctx, func(*domain.Account) bool { return false }) {
			s.Fail("expected no accounts")
		}
	})
}
