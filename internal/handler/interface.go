package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/pkg/access"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/issues"
	"github.com/quarrel-lab/quarrel/pkg/reconciler"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies every manager may pull
// from.
type RegisterConfig struct {
	DB         *gorm.DB
	Index      *accessindex.Service
	Tenants    *tenant.Manager
	Engine     *issues.Engine
	Checker    *access.Checker
	Reconciler *reconciler.Reconciler
}

type ManagerRegisterFunc func(conf *RegisterConfig) Manager

// Registers collects the manager constructors; each handler file appends
// its own in init().
var Registers []ManagerRegisterFunc
