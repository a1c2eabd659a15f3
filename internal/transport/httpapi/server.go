// Package httpapi exposes the intake pipeline over a JSON HTTP API.
// Sessions are addressed by a caller-chosen user ID, mirroring the chat
// transport: upload a template, post answers one by one, and the final
// answer returns the rendered PDF.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstamp/fieldstamp/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Server serves the intake API.
type Server struct {
	pipe    *pipeline.Pipeline
	maxSize int64
	srv     *http.Server
}

// New builds a Server listening on addr.
func New(addr string, pipe *pipeline.Pipeline, maxTemplateSize int64, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{pipe: pipe, maxSize: maxTemplateSize}
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.maxSize > 0 {
		r.MaxMultipartMemory = s.maxSize
	}

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sessions/:user/template", s.handleTemplate)
		v1.POST("/sessions/:user/messages", s.handleMessage)
		v1.DELETE("/sessions/:user", s.handleCancel)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http api listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown failed: %w", err)
		}
		return <-errCh
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTemplate accepts the PDF template either as a raw body or as a
// multipart "template" file part, and starts a session for :user.
func (s *Server) handleTemplate(c *gin.Context) {
	userID := c.Param("user")

	doc, err := s.readTemplate(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply := s.pipe.TemplateUploaded(userID, doc)
	if reply.Text == "" || reply.Document != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected pipeline reply"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply.Text})
}

func (s *Server) readTemplate(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("template"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file: %w", err)
		}
		defer f.Close()
		return s.readLimited(f)
	}
	return s.readLimited(c.Request.Body)
}

func (s *Server) readLimited(r io.Reader) ([]byte, error) {
	limit := s.maxSize
	if limit <= 0 {
		limit = 64 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read template body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty template body")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("template exceeds %d byte limit", limit)
	}
	return data, nil
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleMessage feeds one answer into :user's session. A completed
// session returns the rendered PDF; anything else returns JSON with the
// next prompt or validation message.
func (s *Server) handleMessage(c *gin.Context) {
	userID := c.Param("user")

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a text field"})
		return
	}

	reply := s.pipe.TextReceived(userID, req.Text)
	if reply.Document != nil {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reply.Filename))
		c.Data(http.StatusOK, "application/pdf", reply.Document)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply.Text})
}

func (s *Server) handleCancel(c *gin.Context) {
	reply := s.pipe.CancelRequested(c.Param("user"))
	c.JSON(http.StatusOK, gin.H{"message": reply.Text})
}
