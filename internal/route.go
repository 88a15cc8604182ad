package internal

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quarrel-lab/quarrel/internal/handler"
	"github.com/quarrel-lab/quarrel/internal/middleware"
)

type Backend struct {
	R *gin.Engine
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.R.ServeHTTP(w, r)
}

// Register builds the gin engine and mounts every manager on the public,
// protected and admin route tiers.
func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.Default()

	// Kubernetes health check
	s.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	s.R.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Enable CORS for http://localhost:XXXX in debug mode
	if gin.Mode() == gin.DebugMode {
		fe := os.Getenv("QUARREL_FE_PORT")
		if fe != "" {
			url := "http://localhost:" + fe
			corsConf := cors.DefaultConfig()
			corsConf.AllowOrigins = []string{url}
			corsConf.AllowHeaders = append(corsConf.AllowHeaders, "Authorization")
			s.R.Use(cors.New(corsConf))
		}
	}

	managers := registerManagers(conf)

	publicRouter := s.R.Group("/v1/auth")

	protectedRouter := s.R.Group("/v1")
	protectedRouter.Use(middleware.AuthProtected())

	adminRouter := s.R.Group("/v1/admin")
	adminRouter.Use(middleware.AuthProtected(), middleware.AuthAdmin())

	for _, mgr := range managers {
		mgr.RegisterPublic(publicRouter)
		mgr.RegisterProtected(protectedRouter.Group("/" + mgr.GetName()))
		mgr.RegisterAdmin(adminRouter)
	}

	return s
}
