// Package web holds the dashboard's templates and static assets.
package web

import "embed"

// TemplatesFS holds the page templates; layout.html defines head and foot.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
