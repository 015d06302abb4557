package main

import (
	"embed"
	"previewd/server"
)

//go:embed embed
var fs embed.FS

func main() {
	server.Serve(&fs)
}
