package internal

import (
	"github.com/quarrel-lab/quarrel/internal/handler"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
)

// registerManagers registers all the managers.
func registerManagers(config *handler.RegisterConfig) []handler.Manager {
	var managers []handler.Manager
	for _, register := range handler.Registers {
		manager := register(config)
		managers = append(managers, manager)
		logutils.Log.Infof("Registered manager: %s", manager.GetName())
	}
	return managers
}
