// Package schemas embeds the JSON Schema documents validated by the contracts package.
package schemas

import "embed"

//go:embed events forms
var SchemasFS embed.FS
