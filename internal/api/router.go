package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	RateLimitRPS float64
}

func NewRouter(cfg RouterConfig, h *Handler) (*gin.Engine, error) {
	if err := RegisterValidations(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", ReporterHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS))
	router.Use(ReporterMiddleware())

	h.RegisterRoutes(router)
	return router, nil
}
