// Package embedded provides access to embedded model catalog data files.
package embedded

import _ "embed"

// PricingCatalogData contains the embedded per-model token price catalog YAML data.
//
//go:embed pricing.yaml
var PricingCatalogData []byte
