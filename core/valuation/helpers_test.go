package valuation_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/valuation"
)

func parseParams(t *testing.T) listing.Params {
	t.Helper()
	p, err := listing.Parse(valuation.ListSchema, url.Values{}, listing.Options{DefaultLimit: 20, MaxLimit: 100, Strict: true})
	require.NoError(t, err)
	return p
}
