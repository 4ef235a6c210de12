package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"wakesched/internal/dispatch"
	"wakesched/internal/models"
	"wakesched/internal/models/config"
	"wakesched/internal/store"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (dispatch.CycleReport, error)
}

type JobStates interface {
	AckJob(ctx context.Context, jobID string) error
	IsLocked(ctx context.Context, jobID string) (bool, error)
}

// Server is the operational HTTP API.
type Server struct {
	engine     *gin.Engine
	wakeups    store.WakeupStore
	configs    store.JobConfigStore
	jobs       JobStates
	dispatcher CycleRunner
	admin      config.AdminConfig
	now        func() time.Time
}

type jobView struct {
	models.JobConfig
	Locked bool `json:"locked"`
}

func NewServer(wakeups store.WakeupStore, configs store.JobConfigStore, jobs JobStates, dispatcher CycleRunner, admin config.AdminConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:     gin.New(),
		wakeups:    wakeups,
		configs:    configs,
		jobs:       jobs,
		dispatcher: dispatcher,
		admin:      admin,
		now:        time.Now,
	}
	s.engine.Use(gin.Logger(), gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/", s.basicAuth())
	api.GET("/wakeups/due/count", s.countDue)
	api.GET("/wakeups/:id", s.findWakeup)
	api.POST("/cycles", s.runCycle)
	api.GET("/jobs", s.listJobs)
	api.POST("/jobs/:id/ack", s.ackJob)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on the configured port until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.admin.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: admin API listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuth is a no-op unless a password hash is configured.
func (s *Server) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.admin.PasswordHash == "" {
			c.Next()
			return
		}
		user, password, ok := c.Request.BasicAuth()
		if !ok || user != s.admin.UserName ||
			bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)) != nil {
			c.Header("WWW-Authenticate", `Basic realm="wakesched"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) countDue(c *gin.Context) {
	now := s.now().UnixMilli()
	count, err := s.wakeups.CountDue(c.Request.Context(), now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"due": count, "at": now})
}

func (s *Server) findWakeup(c *gin.Context) {
	wakeup, err := s.wakeups.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "wakeup not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wakeup)
}

func (s *Server) runCycle(c *gin.Context) {
	report, err := s.dispatcher.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listJobs(c *gin.Context) {
	ctx := c.Request.Context()
	configs, err := s.configs.FindAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	jobs := make([]jobView, 0, len(configs))
	for _, cfg := range configs {
		locked, err := s.jobs.IsLocked(ctx, cfg.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		jobs = append(jobs, jobView{JobConfig: cfg, Locked: locked})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) ackJob(c *gin.Context) {
	if err := s.jobs.AckJob(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
