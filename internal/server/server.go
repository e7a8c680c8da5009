package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/config"
	"github.com/emilythestrangee/filblog/backend/internal/database"
	"github.com/emilythestrangee/filblog/backend/internal/handlers"
	"github.com/emilythestrangee/filblog/backend/internal/middleware"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	issuer  *auth.Issuer
	handler *handlers.Handler
}

// New wires the handlers around db, the content store and the contract.
func New(cfg *config.Config, db database.Service, store handlers.ContentStore, contract handlers.BlogContract) *Server {
	issuer := auth.NewIssuer(cfg.JWTSecret)
	policy := handlers.UploadPolicy{MaxRetries: cfg.IPFS.MaxRetries, RetryDelay: cfg.IPFS.RetryDelay}
	return &Server{
		cfg:     cfg,
		db:      db,
		issuer:  issuer,
		handler: handlers.NewHandler(db, issuer, store, contract, policy),
	}
}

// NewServer creates and configures a new server
func NewServer(cfg *config.Config, db database.Service, store handlers.ContentStore, contract handlers.BlogContract) *http.Server {
	s := New(cfg, db, store, contract)
	router := s.RegisterRoutes()

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "filblog-api"),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}

	log.Printf("🚀 Server starting on port %s\n", cfg.Port)
	fmt.Println("📝 Press Ctrl+C to stop the server")

	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()
	r.Use(middleware.RequestID())

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowsAll(origins),
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		db := s.db.Health()
		status := http.StatusOK
		if db["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "database": db})
	})

	optional := middleware.OptionalAuth(s.issuer)

	api := r.Group("/api")
	{
		// Wallet sign-in (public)
		api.POST("/auth/nonce", s.handler.Auth.Nonce)
		api.POST("/auth/verify", s.handler.Auth.Verify)

		api.GET("/profile", s.handler.Profile.GetProfile)

		// Likes and comments (public reads, personalised when signed in)
		api.GET("/blogs/:slug/like", optional, s.handler.Like.GetBlogLike)
		api.GET("/blogs/:slug/comments", optional, s.handler.Comment.GetComments)

		// Reading analytics
		api.GET("/analytics/top", s.handler.Read.TopBlogs)
		api.GET("/analytics/blogs/:slug", s.handler.Read.BlogStats)
		api.GET("/analytics/:address", s.handler.Read.GetReaderStats)

		api.GET("/content/:cid", s.handler.Content.Fetch)

		// Contract reads
		chain := api.Group("/chain")
		{
			chain.GET("/users/:id", s.handler.Chain.GetUser)
			chain.GET("/users/:id/rewards", s.handler.Chain.GetUserRewards)
			chain.GET("/posts", s.handler.Chain.ListPosts)
			chain.GET("/posts/:id", s.handler.Chain.GetPost)
			chain.GET("/posts/:id/read-sessions", s.handler.Chain.GetReadSessions)
			chain.GET("/posts/:id/comments", s.handler.Chain.GetPostComments)
			chain.GET("/comments/:id", s.handler.Chain.GetComment)
			chain.GET("/address/:address/user-id", s.handler.Chain.UserIDByAddress)
			chain.GET("/reward-points", s.handler.Chain.RewardPoints)
		}

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.issuer))
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.PUT("/profile", s.handler.Profile.UpdateProfile)

			protected.POST("/blogs/:slug/like", s.handler.Like.ToggleBlogLike)
			protected.POST("/blogs/:slug/comments", s.handler.Comment.CreateComment)
			protected.PUT("/blogs/:slug/comments/:id", s.handler.Comment.UpdateComment)
			protected.DELETE("/blogs/:slug/comments/:id", s.handler.Comment.DeleteComment)
			protected.POST("/blogs/:slug/comments/:id/like", s.handler.Like.ToggleCommentLike)

			protected.POST("/reads", s.handler.Read.RecordRead)
			protected.POST("/content", s.handler.Content.Upload)

			// Contract writes
			protected.POST("/chain/users", s.handler.Chain.RegisterUser)
			protected.POST("/chain/posts", s.handler.Chain.CreatePost)
			protected.PUT("/chain/posts/:id", s.handler.Chain.UpdatePost)
			protected.DELETE("/chain/posts/:id", s.handler.Chain.DeletePost)
			protected.POST("/chain/posts/:id/comments", s.handler.Chain.AddComment)
			protected.POST("/chain/posts/:id/like", s.handler.Chain.LikePost)
			protected.PUT("/chain/posts/:id/metadata", s.handler.Chain.UpdateMetadata)
			protected.POST("/chain/comments/:id/like", s.handler.Chain.LikeComment)
		}
	}

	return r
}

// allowsAll reports whether origins is the "*" wildcard, which cannot be
// combined with credentials.
func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
