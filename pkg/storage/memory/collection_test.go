package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
	"github.com/tendant/simple-idm-docstore/pkg/storage/storagetest"
)

func TestCollectionSuite(t *testing.T) {
	suite.Run(t, &storagetest.CollectionSuite{
		NewCollection: func() storage.Collection { return New() },
	})
}

func TestCollection_CancelledContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.AddOrReplace(ctx, domain.NewAccount())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Len())

	_, _, err = c.FindByKey(ctx, "any")
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollection_ScanCancelledMidway(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddOrReplace(context.Background(), domain.NewAccount()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var errs []error
	seen := 0
	for _, err := range c.Scan(ctx, nil) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seen++
		cancel()
	}

	assert.Equal(t, 1, seen)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}
