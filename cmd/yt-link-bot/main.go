package main

import (
	"github.com/ytget/yt-link-bot/internal/app"
)

var version = "dev"

func main() {
	app.Execute(version)
}
