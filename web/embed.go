package web

import "embed"

// TemplatesFS embeds the HTML email bodies.
//
//go:embed templates/*.html
var TemplatesFS embed.FS
