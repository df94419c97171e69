// Package server exposes the LINE webhook over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/es-reviewer/internal/bot"
	"github.com/spigell/es-reviewer/internal/line"
	"github.com/spigell/es-reviewer/internal/logger"
)

const (
	DefaultAddress = ":8080"
	// eventWorkers bounds how many webhook events are handled at once.
	eventWorkers    = 8
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
	bodyKey         = "raw_body"
)

// Handler produces reply texts for chat events.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) ([]string, error)
	Follow(ctx context.Context, user string) []string
}

// Replier sends reply texts with a reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
}

type Config struct {
	Address       string
	ChannelSecret string
}

type Server struct {
	cfg     Config
	handler Handler
	replier Replier
	logger  *zap.Logger
	router  *gin.Engine
}

func New(cfg Config, handler Handler, replier Replier, log *zap.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		handler: handler,
		replier: replier,
		logger:  logger.OrNop(log).Named("server"),
		router:  gin.New(),
	}

	s.router.Use(gin.Recovery(), s.accessLog())
	s.router.GET("/healthz", s.status)
	s.router.GET("/webhook", s.status)
	s.router.POST("/webhook", s.verifySignature(s.webhook))

	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifySignature reads the body once and checks it against the channel
// secret before the real handler runs.
func (s *Server) verifySignature(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(line.SignatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing signature"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !line.VerifySignature(s.cfg.ChannelSecret, body, signature) {
			s.logger.Warn("invalid webhook signature", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Set(bodyKey, body)
		next(c)
	}
}

func (s *Server) webhook(c *gin.Context) {
	body := c.MustGet(bodyKey).([]byte)
	hook, err := line.ParseWebhook(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// Replies must go out even if LINE drops the connection early.
	ctx := context.WithoutCancel(c.Request.Context())
	s.dispatch(ctx, hook.Events)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// dispatch handles events concurrently. Failures are logged per event and
// never fail the webhook response.
func (s *Server) dispatch(ctx context.Context, events []line.Event) {
	var g errgroup.Group
	g.SetLimit(eventWorkers)

	for _, ev := range events {
		g.Go(func() error {
			if err := s.handleEvent(ctx, ev); err != nil {
				s.logger.Error("handle event",
					zap.String("type", ev.Type),
					zap.String(logger.FieldUser, ev.Source.UserID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *Server) handleEvent(ctx context.Context, ev line.Event) error {
	if ev.ReplyToken == "" {
		return nil
	}

	var replies []string
	switch ev.Type {
	case line.EventFollow:
		replies = s.handler.Follow(ctx, ev.Source.UserID)
	case line.EventMessage:
		text, ok := ev.Text()
		if !ok {
			return nil
		}
		var err error
		replies, err = s.handler.Handle(ctx, bot.Message{User: ev.Source.UserID, Text: text})
		if err != nil {
			return err
		}
	default:
		return nil
	}

	if len(replies) == 0 {
		return nil
	}
	return s.replier.Reply(ctx, ev.ReplyToken, replies...)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		)
	}
}
