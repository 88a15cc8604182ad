package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/internal/resputil"
	"github.com/quarrel-lab/quarrel/internal/util"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	db       *gorm.DB
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		db:       conf.DB,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/signup", mgr.Signup)
	g.POST("/login", mgr.Login)
	g.POST("/refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	SignupReq struct {
		Username string  `json:"username" binding:"required,max=32"`
		Password string  `json:"password" binding:"required,min=8"`
		Nickname *string `json:"nickname" binding:"omitempty,max=32"`
		Email    *string `json:"email" binding:"omitempty,email"`
	}

	LoginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	LoginResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
)

// Signup godoc
//
//	@Summary		Register a new user
//	@Tags			Auth
//	@Router			/v1/auth/signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	user := model.User{
		Name:     req.Username,
		Nickname: req.Nickname,
		Email:    req.Email,
		Password: lo.ToPtr(string(hash)),
		Role:     model.RoleUser,
		Status:   model.StatusActive,
	}
	if err := mgr.db.WithContext(c).Create(&user).Error; err != nil {
		resputil.ValidationFailed(c, map[string]string{"username": "username already taken"})
		return
	}

	resputil.Created(c, "User created successfully", gin.H{"id": user.ID})
}

// Login godoc
//
//	@Summary		Verify credentials and hand out the JWT pair
//	@Tags			Auth
//	@Router			/v1/auth/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	l := logutils.Log.WithFields(logutils.Fields{"username": req.Username})

	var user model.User
	err := mgr.db.WithContext(c).Where("name = ?", req.Username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error(err)
		}
		resputil.HTTPError(c, http.StatusUnauthorized, resputil.ReasonUnauthorized, "Invalid credentials")
		return
	}
	if user.Password == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.Password)) != nil {
		l.Info("invalid credentials")
		resputil.HTTPError(c, http.StatusUnauthorized, resputil.ReasonUnauthorized, "Invalid credentials")
		return
	}
	if user.Status != model.StatusActive {
		resputil.HTTPError(c, http.StatusUnauthorized, resputil.ReasonUnauthorized, "User is not active")
		return
	}

	access, refresh, err := mgr.tokenMgr.CreateTokens(&util.JWTMessage{
		UserID:   user.ID,
		Username: user.Name,
		Role:     user.Role,
	})
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Success(c, "Login successful", LoginResp{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// RefreshToken godoc
//
//	@Summary		Exchange a refresh token for a fresh pair
//	@Tags			Auth
//	@Router			/v1/auth/refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.ValidationFailed(c, err.Error())
		return
	}

	msg, err := mgr.tokenMgr.CheckToken(req.RefreshToken)
	if err != nil {
		resputil.Unauthorized(c)
		return
	}

	access, refresh, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.BadRequestError(c, "Something went wrong, please contact support")
		return
	}

	resputil.Success(c, "Token refreshed", LoginResp{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}
