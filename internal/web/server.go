// Package web serves locally placed artifacts behind signed links.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ytget/yt-link-bot/internal/platform"
	"github.com/ytget/yt-link-bot/internal/storage"
)

// ShutdownTimeout bounds graceful shutdown of the listener
const ShutdownTimeout = 5 * time.Second

// Verifier checks a download token for one owner file
type Verifier interface {
	Verify(token string, ownerID int64, file string) error
}

// Server is the download link endpoint
type Server struct {
	downloadDir string
	verifier    Verifier
	engine      *gin.Engine
}

// NewServer creates the router. Set debug to get gin's request logging.
func NewServer(downloadDir string, verifier Verifier, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if debug {
		engine.Use(gin.Logger())
	}

	s := &Server{downloadDir: downloadDir, verifier: verifier, engine: engine}
	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	engine.GET(storage.DownloadRoute+"/:owner/:file", s.serveFile)
	return s
}

// Handler returns the http handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] link server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("[INFO] link server stopped")
	return nil
}

func (s *Server) serveFile(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Param("owner"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	file := c.Param("file")
	if file == "" || file != filepath.Base(file) || file == "." || file == ".." {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	token := c.Query(storage.TokenQueryName)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := s.verifier.Verify(token, ownerID, file); err != nil {
		log.Printf("[DEBUG] rejected link for %d/%s: %v", ownerID, file, err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "link expired or invalid"})
		return
	}

	path := filepath.Join(platform.OwnerDir(s.downloadDir, ownerID), file)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.FileAttachment(path, file)
}
