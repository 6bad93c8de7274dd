package main

import (
	"context"
	"equipment_lending/app"
	"equipment_lending/config"
	"equipment_lending/routes"
)

func main() {
	config.LoadEnv()
	application := app.MustNew()
	defer application.Close()

	app.BootstrapFirstAdmin(context.Background(), application.Config, application.Repo, application.Log)
	routes.RegisterRoutes(application.Router, application)

	addr := ":" + application.Config.Port
	application.Log.Infof("listening on %s", addr)
	if err := application.Router.Run(addr); err != nil {
		application.Log.Fatalf("server: %v", err)
	}
}
