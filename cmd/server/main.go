// Command server runs the city weather HTTP service.
package main

import (
	"context"
	"log"
	"time"

	"github.com/sean-rowe/city-weather-service/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = application.Start(ctx)
	cancel()

	if err != nil {
		application.Stop()
		log.Fatalf("failed to start application: %v", err)
	}

	application.WaitForShutdown()
	application.Stop()
}
