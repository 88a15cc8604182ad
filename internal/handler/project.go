package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/internal/payload"
	"github.com/quarrel-lab/quarrel/internal/resputil"
	"github.com/quarrel-lab/quarrel/internal/util"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name    string
	db      *gorm.DB
	index   *accessindex.Service
	tenants *tenant.Manager
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:    "projects",
		db:      conf.DB,
		index:   conf.Index,
		tenants: conf.Tenants,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.List)
	g.POST("", mgr.Create)
	g.GET("/:pid", mgr.Get)
	g.PUT("/:pid", mgr.Update)
	g.DELETE("/:pid", mgr.Delete)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ProjectURI struct {
		ProjectID uint `uri:"pid" binding:"required"`
	}

	ListProjectsReq struct {
		payload.ListReqQuery
		Filter string       `form:"filter"`
		Search string       `form:"search"`
		Sort   payload.Sort `form:"sort"`
	}

	ProjectCreateReq struct {
		Name        string `json:"name" binding:"required,max=30"`
		Description string `json:"description" binding:"required,max=500"`
		IsPublic    *bool  `json:"is_public" binding:"required"`
		TeamID      *uint  `json:"team_id"`
	}

	ProjectUpdateReq struct {
		Name        *string `json:"name" binding:"omitempty,min=1,max=30"`
		Description *string `json:"description" binding:"omitempty,max=500"`
		IsPublic    *bool   `json:"is_public"`
		AdminID     *uint   `json:"admin_id"`
		TeamID      *uint   `json:"team_id"`
	}

	TeamResp struct {
		Info    *model.Team        `json:"info"`
		Members []model.TeamMember `json:"members"`
	}

	IssueCountResp struct {
		Total int64 `json:"total"`
		Open  int64 `json:"open"`
	}

	ProjectResp struct {
		Project *model.Project `json:"project"`
		Team    TeamResp       `json:"team"`
		Admin   *model.User    `json:"admin"`
		Issue   IssueCountResp `json:"issue"`
	}
)

// List godoc
//
//	@Summary		List projects the caller may see
//	@Description	Project ids come from the access index; filter is one of
//	@Description	mine, public, private, all (default all).
//	@Tags			Project
//	@Router			/v1/projects [get]
func (mgr *ProjectMgr) List(c *gin.Context) {
	token := util.GetToken(c)

	var req ListProjectsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	req.Normalize()

	ids, err := mgr.index.AccessibleProjectIDs(c, token.UserID, accessindex.Filter(req.Filter))
	if err != nil {
		resputil.Error(c, err, "Project not found")
		return
	}

	q := mgr.db.WithContext(c).Model(&model.Project{}).Where("id IN ?", ids)
	if req.Search != "" {
		q = q.Where("name LIKE ?", "%"+req.Search+"%").Order("created_at DESC")
	} else {
		switch req.Sort {
		case payload.SortNameAsc:
			q = q.Order("name ASC")
		case payload.SortNameDesc:
			q = q.Order("name DESC")
		case payload.SortLatest:
			q = q.Order("created_at DESC")
		case payload.SortOldest:
			q = q.Order("created_at ASC")
		case payload.SortPidDesc:
			q = q.Order("id DESC")
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	var projects []model.Project
	err = q.Offset((req.Page - 1) * req.PerPage).Limit(req.PerPage).Find(&projects).Error
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	data := make([]ProjectResp, 0, len(projects))
	for i := range projects {
		resp, err := mgr.projectResp(c, &projects[i], true)
		if err != nil {
			resputil.BadRequestError(c, "Something went wrong, please contact support")
			return
		}
		data = append(data, *resp)
	}

	resputil.Info(c, "Projects fetched successfully", payload.ListResp[ProjectResp]{
		Data: data,
		Pagination: payload.Pagination{
			Total:   total,
			PerPage: req.PerPage,
			Page:    req.Page,
			Count:   len(data),
		},
	})
}

// Create godoc
//
//	@Summary		Create a project with its issue partition and index entries
//	@Description	Project row, partition provision, creator seed and team
//	@Description	sync form one logical unit.
//	@Tags			Project
//	@Router			/v1/projects [post]
func (mgr *ProjectMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var req ProjectCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	project := model.Project{
		Name:        req.Name,
		Description: &req.Description,
		IsPublic:    *req.IsPublic,
		CreatorID:   token.UserID,
		AdminID:     token.UserID,
		TeamID:      req.TeamID,
	}
	// project row, partition and index entries commit or roll back as one
	// unit; no partial project can be observed on the error branch
	err := mgr.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if err := mgr.tenants.WithTx(tx).Provision(c, project.ID); err != nil {
			return err
		}
		if err := mgr.index.WithTx(tx).Seed(c, project.ID, token.UserID, project.IsPublic); err != nil {
			return err
		}
		if project.TeamID != nil {
			return mgr.index.WithTx(tx).SyncTeamMembers(c, project.ID, *project.TeamID, project.IsPublic, project.AdminID)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			resputil.ValidationFailed(c, map[string]string{"name": "project name already taken"})
			return
		}
		logutils.Log.Error("create project: ", err)
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Created(c, "Project created successfully", project)
}

// Get godoc
//
//	@Summary		Fetch one project
//	@Description	A project the caller cannot see and a project that does
//	@Description	not exist are indistinguishable: both return 404.
//	@Tags			Project
//	@Router			/v1/projects/{pid} [get]
func (mgr *ProjectMgr) Get(c *gin.Context) {
	token := util.GetToken(c)

	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	ok, err := mgr.index.HasAccess(c, uri.ProjectID, token.UserID)
	if err != nil || !ok {
		resputil.NotFound(c, "No such project to view")
		return
	}

	var project model.Project
	if err := mgr.db.WithContext(c).First(&project, uri.ProjectID).Error; err != nil {
		resputil.NotFound(c, "No such project to view")
		return
	}

	resp, err := mgr.projectResp(c, &project, false)
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	resputil.Info(c, "Project fetched successfully", resp)
}

// Update godoc
//
//	@Summary		Update a project (admin only)
//	@Description	Team reassignment applies the membership delta to the
//	@Description	access index; a visibility change propagates to every
//	@Description	index row before the request returns.
//	@Tags			Project
//	@Router			/v1/projects/{pid} [put]
func (mgr *ProjectMgr) Update(c *gin.Context) {
	token := util.GetToken(c)

	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	var req ProjectUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var project model.Project
	err := mgr.db.WithContext(c).First(&project, uri.ProjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		resputil.NotFound(c, "No such project to update")
		return
	}
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	if project.AdminID != token.UserID {
		resputil.Forbidden(c, "Only the project administrator can update the project")
		return
	}

	oldTeamID := project.TeamID
	oldAdminID := project.AdminID

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if req.AdminID != nil {
		updates["admin_id"] = *req.AdminID
	}
	if req.TeamID != nil {
		if *req.TeamID == 0 {
			updates["team_id"] = nil
		} else {
			updates["team_id"] = *req.TeamID
		}
	}
	if len(updates) > 0 {
		if err := mgr.db.WithContext(c).Model(&project).Updates(updates).Error; err != nil {
			resputil.ValidationFailed(c, map[string]string{"name": "project name already taken"})
			return
		}
	}

	// re-read so the index deltas run against the stored state
	if err := mgr.db.WithContext(c).First(&project, uri.ProjectID).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	if req.AdminID != nil {
		if err := mgr.index.TransferAdmin(c, project.ID, oldAdminID, project.AdminID, project.TeamID, project.IsPublic); err != nil {
			resputil.BadRequestError(c, "Something went wrong, please contact support")
			return
		}
	}
	if req.TeamID != nil {
		if err := mgr.index.ApplyTeamReassignment(c, project.ID, oldTeamID, project.TeamID, project.AdminID, project.IsPublic); err != nil {
			resputil.BadRequestError(c, "Something went wrong, please contact support")
			return
		}
	}
	if req.IsPublic != nil {
		if err := mgr.index.PropagateVisibility(c, project.ID, project.IsPublic); err != nil {
			resputil.BadRequestError(c, "Something went wrong, please contact support")
			return
		}
	}

	resputil.Success(c, "Project updated successfully", project)
}

// Delete godoc
//
//	@Summary		Delete a project and everything under it
//	@Description	Project row, access index rows and the issue partition go
//	@Description	together; the partition drop is irreversible.
//	@Tags			Project
//	@Router			/v1/projects/{pid} [delete]
func (mgr *ProjectMgr) Delete(c *gin.Context) {
	token := util.GetToken(c)

	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var project model.Project
	err := mgr.db.WithContext(c).First(&project, uri.ProjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		resputil.NotFound(c, "No such project to delete")
		return
	}
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	if project.AdminID != token.UserID {
		// deliberately indistinguishable from a missing project
		resputil.NotFound(c, "No such project to delete")
		return
	}

	if err := mgr.db.WithContext(c).Unscoped().Delete(&project).Error; err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	if err := mgr.index.DropProject(c, project.ID); err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}
	// the project row is gone; dropping the partition completes the unit
	if err := mgr.tenants.Decommission(c, project.ID); err != nil {
		logutils.Log.WithFields(logutils.Fields{"project": project.ID}).
			Error("decommission after delete: ", err)
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Success(c, "Project deleted successfully", nil)
}

// projectResp assembles the list/detail payload with team, admin and,
// for the list view, issue counts.
func (mgr *ProjectMgr) projectResp(c *gin.Context, project *model.Project, withCounts bool) (*ProjectResp, error) {
	resp := &ProjectResp{Project: project}

	if project.TeamID != nil {
		var team model.Team
		if err := mgr.db.WithContext(c).First(&team, *project.TeamID).Error; err == nil {
			resp.Team.Info = &team
		}
		if err := mgr.db.WithContext(c).
			Where("team_id = ?", *project.TeamID).Find(&resp.Team.Members).Error; err != nil {
			return nil, err
		}
	}

	var admin model.User
	if err := mgr.db.WithContext(c).First(&admin, project.AdminID).Error; err == nil {
		admin.Password = nil
		resp.Admin = &admin
	}

	if withCounts {
		if err := mgr.db.WithContext(c).Model(&model.Issue{}).
			Where("project_id = ?", project.ID).Count(&resp.Issue.Total).Error; err != nil {
			return nil, err
		}
		if err := mgr.db.WithContext(c).Model(&model.Issue{}).
			Where("project_id = ? AND is_open = ?", project.ID, true).
			Count(&resp.Issue.Open).Error; err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// isUniqueViolation matches duplicate key errors that gorm does not
// translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
