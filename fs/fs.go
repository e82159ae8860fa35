// Package appfs embeds static assets that ship with the binaries.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
