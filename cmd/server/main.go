package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"gamelobby/coordinator/internal/auth"
	"gamelobby/coordinator/internal/config"
	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/handler"
	"gamelobby/coordinator/internal/hub"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "gamelobby/coordinator/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Game Lobby Coordinator API
// @version         1.0
// @description     Lobby state-synchronization protocol over a shared document store.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx := context.Background()

	// Pick the document store backend.
	var store docstore.Store
	switch config.AppConfig.StoreBackend {
	case "postgres":
		pg, err := docstore.OpenPostgres(config.AppConfig.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open document store: %v", err)
		}
		store = pg
	default:
		log.Println("Using in-memory document store")
		store = docstore.NewMemory()
	}

	h := handler.New(ctx, store, hub.NewHub())

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/anonymous", h.AnonymousLogin)
			authRoutes.POST("/register", h.RegisterUser)
			authRoutes.POST("/login", h.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", h.GetMe)
		}

		// Public game lookup (token optional)
		gameRoutes := apiV1.Group("/games")
		gameRoutes.Use(auth.OptionalAuthMiddleware())
		{
			gameRoutes.GET("/:code", h.GetGameByCode)
		}

		// Lobby routes (protected)
		lobbyRoutes := apiV1.Group("/lobbies")
		lobbyRoutes.Use(auth.AuthMiddleware())
		{
			lobbyRoutes.POST("", h.CreateGame)
			lobbyRoutes.GET("/current", h.GetLobbyState)
			lobbyRoutes.GET("/watch", h.WatchGame)
			lobbyRoutes.POST("/join", h.JoinGame)
			lobbyRoutes.POST("/leave", h.LeaveGame) // No code needed, user leaves their own game
			lobbyRoutes.POST("/cancel", h.CancelGame)
			lobbyRoutes.POST("/ack-cancel", h.AcknowledgeCancel)
			lobbyRoutes.PUT("/members/:uid", h.RenameMember)
			lobbyRoutes.DELETE("/members/:uid", h.KickMember)
		}
	}

	fmt.Println("Server is running on " + config.AppConfig.Addr)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(config.AppConfig.Addr))
}
