// Package configs holds configuration templates embedded at build time,
// so `cartograph init` works in every distribution of the binary.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .cartograph.yaml at the project
// root by `cartograph init`. Most settings ship commented out; the file
// documents the defaults rather than overriding them.
//
//go:embed cartograph.example.yaml
var ProjectConfigTemplate string
