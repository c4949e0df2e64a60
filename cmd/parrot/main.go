package main

import (
	"os"

	"horse.fit/parrot/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
