package tollgate

import (
	"net/http"

	"github.com/tollgate-ln/tollgate/l402"
)

// StaticAmount prices every request at the same amount of millisatoshi.
func StaticAmount(amountMsat uint64) AmountFunc {
	return func(*http.Request) uint64 {
		return amountMsat
	}
}

// PathAmounts prices requests per normalized path, falling back to a
// default for paths not listed.
func PathAmounts(amounts map[string]uint64, defaultMsat uint64) AmountFunc {
	normalized := make(map[string]uint64, len(amounts))
	for path, amount := range amounts {
		normalized[l402.NormalizePath(path)] = amount
	}

	return func(r *http.Request) uint64 {
		if amount, ok := normalized[l402.NormalizePath(r.URL.Path)]; ok {
			return amount
		}
		return defaultMsat
	}
}
