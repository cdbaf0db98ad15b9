package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/access"
	"github.com/teststack/test-management-service/internal/config"
	"github.com/teststack/test-management-service/internal/database"
	"github.com/teststack/test-management-service/internal/handler"
	"github.com/teststack/test-management-service/internal/importer"
	"github.com/teststack/test-management-service/internal/middleware"
	"github.com/teststack/test-management-service/internal/repository"
	"github.com/teststack/test-management-service/internal/router"
	"github.com/teststack/test-management-service/internal/storage"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and response caching disabled")
	}

	store := newStore(cfg)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	tags := repository.NewTagRepo(db)
	groups := repository.NewTestGroupRepo(db)
	cases := repository.NewTestCaseRepo(db)
	results := repository.NewTestResultRepo(db)
	imports := repository.NewImportRepo(db)

	resolver := access.NewResolver(groups, tags)
	batch := importer.New(cases, users, imports, cfg.BcryptCost)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	groupH := handler.NewGroupHandler(groups, cases, results, resolver, store)
	tagH := handler.NewTagHandler(tags)
	uploadH := handler.NewUploadHandler(store)
	importH := handler.NewImportHandler(batch, imports, resolver)
	adminH := handler.NewAdminHandler(cfg, users, tokens)

	e := echo.New()
	e.HideBanner = true

	loginLimiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	reportCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, loginLimiter)
	router.RegisterAPI(e, groupH, tagH, uploadH, importH, cfg.JWTSecret, reportCache)
	router.RegisterAdmin(e, adminH, importH, cfg.JWTSecret)

	// Local storage presigns to /files/<key>, so serve the upload root
	// there when no bucket is configured.
	if cfg.S3Bucket == "" {
		e.Static("/files", cfg.UploadRoot)
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// newStore picks the object store: S3 when a bucket is configured, local
// disk otherwise.
func newStore(cfg config.Config) storage.Store {
	if cfg.S3Bucket != "" {
		st, err := storage.NewS3Store(context.Background(), cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		return st
	}
	st, err := storage.NewLocalStore(cfg.UploadRoot)
	if err != nil {
		log.Fatalf("local storage: %v", err)
	}
	return st
}
