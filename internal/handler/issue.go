package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/internal/resputil"
	"github.com/quarrel-lab/quarrel/internal/util"
	"github.com/quarrel-lab/quarrel/pkg/access"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/issues"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewIssueMgr)
}

type IssueMgr struct {
	name    string
	db      *gorm.DB
	index   *accessindex.Service
	engine  *issues.Engine
	checker *access.Checker
}

func NewIssueMgr(conf *RegisterConfig) Manager {
	// issues are nested resources of projects, so the manager mounts on
	// the same route group
	return &IssueMgr{
		name:    "projects",
		db:      conf.DB,
		index:   conf.Index,
		engine:  conf.Engine,
		checker: conf.Checker,
	}
}

func (mgr *IssueMgr) GetName() string { return mgr.name }

func (mgr *IssueMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *IssueMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/:pid/issues", mgr.List)
	g.POST("/:pid/issues", mgr.Create)
	g.GET("/:pid/issues/:iid", mgr.Get)
	g.PUT("/:pid/issues/:iid", mgr.Update)
	g.DELETE("/:pid/issues/:iid", mgr.Delete)
	g.PUT("/:pid/issues/:iid/state", mgr.SetState)
	g.POST("/:pid/issues/:iid/comments", mgr.AppendComment)
}

func (mgr *IssueMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	IssueURI struct {
		ProjectID uint `uri:"pid" binding:"required"`
		IssueID   uint `uri:"iid" binding:"required"`
	}

	IssueCreateReq struct {
		Title       string         `json:"title" binding:"required,max=30"`
		Description string         `json:"description" binding:"required,max=5000"`
		Attachments datatypes.JSON `json:"attachments"`
		AssignTo    *uint          `json:"assign_to"`
		Priority    *int           `json:"priority" binding:"required"`
		Type        *int           `json:"type" binding:"required"`
		IsOpen      *bool          `json:"is_open" binding:"required"`
	}

	IssueUpdateReq struct {
		Title       *string        `json:"title" binding:"omitempty,min=1,max=30"`
		Description *string        `json:"description" binding:"omitempty,max=5000"`
		IsOpen      *bool          `json:"is_open"`
		Priority    *int           `json:"priority"`
		Type        *int           `json:"type"`
		AssignTo    *uint          `json:"assign_to"`
		Attachments datatypes.JSON `json:"attachments"`
	}

	IssueStateReq struct {
		IsOpen *bool `json:"is_open" binding:"required"`
	}

	CommentReq struct {
		Comment string `json:"comment" binding:"required"`
	}

	IssueResp struct {
		Issue    *model.Issue         `json:"issue"`
		Comments []model.IssueComment `json:"comments"`
		Team     TeamResp             `json:"team"`
		Admin    *model.User          `json:"admin"`
	}
)

// projectVisible gates every issue route at the project level. Denial is
// a 404: a hidden project and a missing one look the same.
func (mgr *IssueMgr) projectVisible(c *gin.Context, projectID, userID uint) bool {
	ok, err := mgr.index.HasAccess(c, projectID, userID)
	if err != nil || !ok {
		resputil.NotFound(c, "Project not found")
		return false
	}
	return true
}

// mutationAllowed gates the issue-level mutations. Unlike the project
// gate this denial is explicit: the caller can see the project but lacks
// the creator/assignee/admin relation.
func (mgr *IssueMgr) mutationAllowed(c *gin.Context, projectID, userID, issueID uint) bool {
	ok, err := mgr.checker.CanMutateIssue(c, projectID, userID, issueID)
	if err != nil {
		resputil.Error(c, err, "Issue not found")
		return false
	}
	if !ok {
		resputil.Forbidden(c, "Not have access to do the operation. Only creator, assignee and administrator has access to do this")
		return false
	}
	return true
}

// List godoc
//
//	@Summary		List the project's issues
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues [get]
func (mgr *IssueMgr) List(c *gin.Context) {
	token := util.GetToken(c)

	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}

	list, err := mgr.engine.List(c, uri.ProjectID)
	if err != nil {
		resputil.Error(c, err, "Project not found")
		return
	}
	resputil.Info(c, "Issues fetched successfully", list)
}

// Create godoc
//
//	@Summary		Create an issue in the project's partition
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues [post]
func (mgr *IssueMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}

	var req IssueCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	iid, err := mgr.engine.Create(c, uri.ProjectID, issues.Actor{ID: token.UserID, Name: token.Username}, issues.CreateRequest{
		Title:       req.Title,
		Description: req.Description,
		Attachments: req.Attachments,
		AssignTo:    req.AssignTo,
		Priority:    *req.Priority,
		Type:        *req.Type,
		IsOpen:      *req.IsOpen,
	})
	if err != nil {
		resputil.Error(c, err, "Project not found")
		return
	}

	resputil.Created(c, "Issue created successfully", gin.H{"id": iid})
}

// Get godoc
//
//	@Summary		Fetch one issue with its comment log
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues/{iid} [get]
func (mgr *IssueMgr) Get(c *gin.Context) {
	token := util.GetToken(c)

	var uri IssueURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}

	issue, err := mgr.engine.Get(c, uri.ProjectID, uri.IssueID)
	if err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}
	comments, err := mgr.engine.Comments(c, uri.ProjectID, uri.IssueID)
	if err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}

	resp := IssueResp{Issue: issue, Comments: comments}

	var project model.Project
	if err := mgr.db.WithContext(c).First(&project, uri.ProjectID).Error; err == nil {
		if project.TeamID != nil {
			var team model.Team
			if err := mgr.db.WithContext(c).First(&team, *project.TeamID).Error; err == nil {
				resp.Team.Info = &team
			}
			_ = mgr.db.WithContext(c).
				Where("team_id = ?", *project.TeamID).Find(&resp.Team.Members).Error
		}
		var admin model.User
		if err := mgr.db.WithContext(c).First(&admin, project.AdminID).Error; err == nil {
			admin.Password = nil
			resp.Admin = &admin
		}
	}

	resputil.Info(c, "Issue data fetched successfully", resp)
}

// Update godoc
//
//	@Summary		Partial update of an issue (creator, assignee or admin)
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues/{iid} [put]
func (mgr *IssueMgr) Update(c *gin.Context) {
	token := util.GetToken(c)

	var uri IssueURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}
	if !mgr.mutationAllowed(c, uri.ProjectID, token.UserID, uri.IssueID) {
		return
	}

	var req IssueUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	issue, err := mgr.engine.Update(c, uri.ProjectID, uri.IssueID,
		issues.Actor{ID: token.UserID, Name: token.Username}, issues.UpdatePatch{
			Title:       req.Title,
			Description: req.Description,
			IsOpen:      req.IsOpen,
			Priority:    req.Priority,
			Type:        req.Type,
			AssignTo:    req.AssignTo,
			Attachments: req.Attachments,
		})
	if err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}

	resputil.Success(c, "Issue updated successfully", issue)
}

// SetState godoc
//
//	@Summary		Toggle the open flag (creator, assignee or admin)
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues/{iid}/state [put]
func (mgr *IssueMgr) SetState(c *gin.Context) {
	token := util.GetToken(c)

	var uri IssueURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}
	if !mgr.mutationAllowed(c, uri.ProjectID, token.UserID, uri.IssueID) {
		return
	}

	var req IssueStateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	if err := mgr.engine.SetOpenState(c, uri.ProjectID, uri.IssueID, *req.IsOpen); err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}
	resputil.Success(c, "Issue updated successfully", nil)
}

// AppendComment godoc
//
//	@Summary		Append to the issue's comment log
//	@Description	Requires authentication only; project membership is not
//	@Description	checked on this path.
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues/{iid}/comments [post]
func (mgr *IssueMgr) AppendComment(c *gin.Context) {
	token := util.GetToken(c)

	var uri IssueURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	var req CommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	if err := mgr.engine.AppendComment(c, uri.ProjectID, uri.IssueID, token.UserID, req.Comment); err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}
	resputil.Success(c, "Comment added", nil)
}

// Delete godoc
//
//	@Summary		Permanently remove an issue (creator, assignee or admin)
//	@Tags			Issue
//	@Router			/v1/projects/{pid}/issues/{iid} [delete]
func (mgr *IssueMgr) Delete(c *gin.Context) {
	token := util.GetToken(c)

	var uri IssueURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}
	if !mgr.projectVisible(c, uri.ProjectID, token.UserID) {
		return
	}
	if !mgr.mutationAllowed(c, uri.ProjectID, token.UserID, uri.IssueID) {
		return
	}

	if err := mgr.engine.Delete(c, uri.ProjectID, uri.IssueID); err != nil {
		resputil.Error(c, err, "Issue not found")
		return
	}
	resputil.Success(c, "Issue deleted successfully", nil)
}
