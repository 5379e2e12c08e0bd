// Package scripts embeds the finder scripts shipped with sift. The CLI loads
// them unless --scripts-dir points elsewhere.
package scripts

import "embed"

// FS holds every *.risor finder script at its root.
//
//go:embed *.risor
var FS embed.FS
