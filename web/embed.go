// Package web embeds the browser pages served next to the API.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// StaticFS serves the assets the pages link to under /static/.
func StaticFS() http.FileSystem {
	fsys, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

// GetFile returns the embedded page with the given name.
func GetFile(name string) ([]byte, error) {
	return staticFiles.ReadFile("static/" + name)
}
