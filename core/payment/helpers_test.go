package payment_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/payment"
)

func parseParams(t *testing.T) listing.Params {
	t.Helper()
	p, err := listing.Parse(payment.ListSchema, url.Values{}, listing.Options{DefaultLimit: 20, MaxLimit: 100, Strict: true})
	require.NoError(t, err)
	return p
}
