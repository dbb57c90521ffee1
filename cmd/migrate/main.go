// Command migrate applies the embedded database migrations.
package main

import (
	"os"

	"github.com/sean-rowe/city-weather-service/cmd/migrate/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
