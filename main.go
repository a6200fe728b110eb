package main

import (
	"github.com/ytget/yt-link-bot/internal/app"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	app.Execute(version)
}
