package upload

import (
	"context"
	"fmt"
	"net/http"

	"github.com/loteraa/verifier/src/utils/config"
	. "github.com/loteraa/verifier/src/utils/logger"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/storage"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Public API: dataset upload and read access to the user's records
type Server struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine

	store    *Store
	uploader *Uploader
	monitor  monitoring.Monitor
	limiter  *rate.Limiter
}

func NewServer(config *config.Config) (self *Server) {
	self = new(Server)

	self.uploader = NewUploader(config)

	self.Task = task.NewTask(config, "upload-server").
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop)

	if config.Uploader.RequestsPerSecond > 0 {
		self.limiter = rate.NewLimiter(rate.Limit(config.Uploader.RequestsPerSecond), config.Uploader.RequestsBurst)
	}

	if !config.IsDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	self.Router = gin.New()
	self.Router.Use(
		Middleware("upload-api"),
		gin.CustomRecovery(self.onPanic),
	)

	functions := self.Router.Group("functions/v1")
	{
		functions.POST("upload-dataset", self.limit, self.onUpload)
	}

	v1 := self.Router.Group("v1")
	{
		v1.POST("datasets", self.limit, self.onUpload)
		v1.GET("datasets/:id", self.onGetDataset)
		v1.GET("users/:userId/datasets", self.onGetDatasets)
		v1.GET("users/:userId/notifications", self.onGetNotifications)
		v1.GET("users/:userId/earnings", self.onGetEarnings)
		v1.GET("users/:userId/profile", self.onGetProfile)
	}

	if config.Uploader.ServeFiles && config.Storage.IsDisk() {
		self.Router.Static("files", config.Storage.Path)
	}

	self.httpServer = &http.Server{
		Addr:    config.Uploader.ListenAddress,
		Handler: self.Handler(),
	}

	return
}

func (self *Server) WithDB(db *gorm.DB) *Server {
	self.store = NewStore(db)
	self.uploader.WithStore(self.store)
	return self
}

func (self *Server) WithStorage(v storage.Storage) *Server {
	self.uploader.WithStorage(v)
	return self
}

func (self *Server) WithScheduler(v Scheduler) *Server {
	self.uploader.WithScheduler(v)
	return self
}

func (self *Server) WithMonitor(v monitoring.Monitor) *Server {
	self.monitor = v
	self.uploader.WithMonitor(v)
	return self
}

// Router wrapped with the CORS handler, preflight requests never reach gin
func (self *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
	}).Handler(self.Router)
}

func (self *Server) limit(c *gin.Context) {
	if self.limiter == nil || self.limiter.Allow() {
		c.Next()
		return
	}
	self.monitor.GetReport().Uploader.State.RequestsLimited.Inc()
	LOGE(c, nil, http.StatusTooManyRequests, "Too many requests").Warn("Request rate limited")
}

func (self *Server) onPanic(c *gin.Context, recovered interface{}) {
	self.monitor.GetReport().Uploader.Errors.Panic.Inc()
	LOGE(c, fmt.Errorf("panic: %v", recovered), http.StatusInternalServerError).Error("Panic in request handler")
}

func (self *Server) run() (err error) {
	self.Log.WithField("address", self.httpServer.Addr).Info("Starting upload API")
	err = self.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		self.Log.WithError(err).Error("Failed to start upload API")
		return
	}
	return nil
}

func (self *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown upload API")
		return
	}
}
