package main

import (
	"log"
)

// Build values injected with -ldflags "-X main.GitCommit=..."
var (
	GitCommit string
	GitTag    string
	BuildTime string
)

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatal("lending service failed to initialize: ", err)
	}
	err = app.Run()
	if err != nil {
		log.Fatal("lending service exited. check logs for more details. ", err)
	}
}
