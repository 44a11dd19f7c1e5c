package main

import (
	"log"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
