package main

import (
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/fakeapi"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

func main() {

	serviceName := "farmdash-stub"

	log := logging.NewLogger()
	log.Infof("Starting up %s ...", serviceName)

	cfg := config.Load()

	fakeapi.CreateRouterAndStartServing(log, cfg)
}
