// Forwarder Identification Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"forwarder-mapping-engine/internal/config"
	"forwarder-mapping-engine/internal/handlers"
	"forwarder-mapping-engine/internal/services/database"
	"forwarder-mapping-engine/internal/services/patterns"
	"forwarder-mapping-engine/internal/services/registry"
	"forwarder-mapping-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Patterns fall back to file or compiled-in defaults when the database
	// is unreachable from the Lambda environment.
	db, err := database.New(cfg)
	if err != nil {
		utils.Logger.Warn("Database unavailable, using fallback patterns", utils.Error(err))
	}

	loader := patterns.NewLoader(db, cfg.PatternsFile, utils.Logger)
	reg := registry.New(context.Background(), loader, utils.Logger)

	handler := handlers.NewIdentifyHandler(reg)

	// Start Lambda
	lambda.Start(handler.Handle)
}
