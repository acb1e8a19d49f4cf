// Package fixtures provides a sample catalog response for local runs and tests.
package fixtures

import _ "embed"

// ProductEnvelope is a successful catalog response for the storefront product.
//
//go:embed product.json
var ProductEnvelope []byte
