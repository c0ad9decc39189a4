package main

import (
	"fmt"
	"os"
	"strconv"

	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/service"
)

// Usage example on the command line:
// > PORT=8080 DBDRIVER=mysql DBUSER=dirk DBPWD=bullo92 MEMBERS_API_KEY=secret GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Println("could not load configuration", err)
		panic(err)
	}
	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	logger.SetRedactPII(*cfg.Log.RedactPII)

	sqlDB, err := service.CreateDatabase(cfg.Store)
	if err != nil {
		panic(err)
	}
	if err := service.SetupDatabaseWrapper(sqlDB, cfg.Store.Driver); err != nil {
		panic(err)
	}
	if cfg.Store.APIKey == "" {
		logger.Warn("member store runs without api key check")
	}
	router := service.SetupHttpRouter(cfg.Store.APIKey)
	logger.Info("member store listening", "port", cfg.Store.Port, "driver", cfg.Store.Driver)
	if err := router.Run(":" + strconv.Itoa(cfg.Store.Port)); err != nil {
		panic(err)
	}
}
