package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/internal/resputil"
	"github.com/quarrel-lab/quarrel/pkg/reconciler"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAdminMgr)
}

type AdminMgr struct {
	name       string
	db         *gorm.DB
	reconciler *reconciler.Reconciler
}

func NewAdminMgr(conf *RegisterConfig) Manager {
	return &AdminMgr{
		name:       "admin",
		db:         conf.DB,
		reconciler: conf.Reconciler,
	}
}

func (mgr *AdminMgr) GetName() string { return mgr.name }

func (mgr *AdminMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *AdminMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AdminMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/users", mgr.ListUsers)
	g.POST("/reconcile", mgr.Reconcile)
}

// ListUsers godoc
//
//	@Summary		List every user (platform admin)
//	@Tags			Admin
//	@Router			/v1/admin/users [get]
func (mgr *AdminMgr) ListUsers(c *gin.Context) {
	var users []model.User
	if err := mgr.db.WithContext(c).Find(&users).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	for i := range users {
		users[i].Password = nil
	}
	resputil.Info(c, "Users fetched successfully", users)
}

// Reconcile godoc
//
//	@Summary		Run the access index consistency sweep now
//	@Tags			Admin
//	@Router			/v1/admin/reconcile [post]
func (mgr *AdminMgr) Reconcile(c *gin.Context) {
	if err := mgr.reconciler.ReconcileAll(c); err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	resputil.Success(c, "Access index reconciled", nil)
}
