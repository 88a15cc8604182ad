package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/internal/resputil"
	"github.com/quarrel-lab/quarrel/internal/util"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTeamMgr)
}

type TeamMgr struct {
	name  string
	db    *gorm.DB
	index *accessindex.Service
}

func NewTeamMgr(conf *RegisterConfig) Manager {
	return &TeamMgr{
		name:  "teams",
		db:    conf.DB,
		index: conf.Index,
	}
}

func (mgr *TeamMgr) GetName() string { return mgr.name }

func (mgr *TeamMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TeamMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create)
	g.GET("/:tid", mgr.Get)
	g.POST("/:tid/members", mgr.AddMember)
	g.DELETE("/:tid/members/:uid", mgr.RemoveMember)
}

func (mgr *TeamMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	TeamURI struct {
		TeamID uint `uri:"tid" binding:"required"`
	}

	TeamMemberURI struct {
		TeamID uint `uri:"tid" binding:"required"`
		UserID uint `uri:"uid" binding:"required"`
	}

	TeamCreateReq struct {
		Name        string  `json:"name" binding:"required,max=32"`
		Description *string `json:"description"`
	}

	AddMemberReq struct {
		UserID uint `json:"user_id" binding:"required"`
	}
)

// Create godoc
//
//	@Summary		Create a team with the caller as first member
//	@Tags			Team
//	@Router			/v1/teams [post]
func (mgr *TeamMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var req TeamCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	team := model.Team{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   token.UserID,
	}
	err := mgr.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		return tx.Create(&model.TeamMember{TeamID: team.ID, UserID: token.UserID}).Error
	})
	if err != nil {
		resputil.ValidationFailed(c, map[string]string{"name": "team name already taken"})
		return
	}

	resputil.Created(c, "Team created successfully", team)
}

// Get godoc
//
//	@Summary		Fetch a team and its members
//	@Tags			Team
//	@Router			/v1/teams/{tid} [get]
func (mgr *TeamMgr) Get(c *gin.Context) {
	var uri TeamURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var team model.Team
	err := mgr.db.WithContext(c).First(&team, uri.TeamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		resputil.NotFound(c, "No such team to view")
		return
	}
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	var members []model.TeamMember
	if err := mgr.db.WithContext(c).
		Where("team_id = ?", uri.TeamID).Find(&members).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Info(c, "Team fetched successfully", TeamResp{Info: &team, Members: members})
}

// AddMember godoc
//
//	@Summary		Add a user to the team
//	@Description	Every project governed by the team gains an access index
//	@Description	entry for the new member in the same request.
//	@Tags			Team
//	@Router			/v1/teams/{tid}/members [post]
func (mgr *TeamMgr) AddMember(c *gin.Context) {
	token := util.GetToken(c)

	var uri TeamURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	var req AddMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var team model.Team
	if err := mgr.db.WithContext(c).First(&team, uri.TeamID).Error; err != nil {
		resputil.NotFound(c, "No such team")
		return
	}
	if team.CreatorID != token.UserID {
		resputil.Forbidden(c, "Only the team creator can manage members")
		return
	}

	member := model.TeamMember{TeamID: uri.TeamID, UserID: req.UserID}
	err := mgr.db.WithContext(c).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&member).Error
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	// sync every project governed by this team
	var projects []model.Project
	if err := mgr.db.WithContext(c).
		Where("team_id = ?", uri.TeamID).Find(&projects).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	for i := range projects {
		p := &projects[i]
		if err := mgr.index.SyncTeamMembers(c, p.ID, uri.TeamID, p.IsPublic, p.AdminID); err != nil {
			resputil.BadRequestError(c, "Something went wrong, please contact support")
			return
		}
	}

	resputil.Success(c, "Member added successfully", nil)
}

// RemoveMember godoc
//
//	@Summary		Remove a user from the team
//	@Description	The user's access index entries for every governed
//	@Description	project are deleted, except where they are the admin.
//	@Tags			Team
//	@Router			/v1/teams/{tid}/members/{uid} [delete]
func (mgr *TeamMgr) RemoveMember(c *gin.Context) {
	token := util.GetToken(c)

	var uri TeamMemberURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var team model.Team
	if err := mgr.db.WithContext(c).First(&team, uri.TeamID).Error; err != nil {
		resputil.NotFound(c, "No such team")
		return
	}
	if team.CreatorID != token.UserID {
		resputil.Forbidden(c, "Only the team creator can manage members")
		return
	}

	err := mgr.db.WithContext(c).Unscoped().
		Where("team_id = ? AND user_id = ?", uri.TeamID, uri.UserID).
		Delete(&model.TeamMember{}).Error
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	if err := mgr.index.RemoveMember(c, uri.TeamID, uri.UserID); err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Success(c, "Member removed successfully", nil)
}
