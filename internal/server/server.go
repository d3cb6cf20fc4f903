package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/journal/pkg/middleware"
)

// ルートグループのパスプレフィックス。
const (
	PrefixAuth      = "/api/auth"
	PrefixFederated = "/api/auth/firebase"
	PrefixJournal   = "/api/journal"
	PrefixInsights  = "/api/insights"
	PrefixSearch    = "/api/search"
)

// ユーティリティエンドポイントの応答。
const (
	RootMessage    = "Emotion Journal API is running..."
	PingMessage    = "pong"
	messageNoRoute = "Not Found"
)

// サーバーのタイムアウト。
const (
	readHeaderTimeout      = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// RouteGroup はパスプレフィックス配下のルートを登録するハンドラー群。
type RouteGroup interface {
	Register(rg *gin.RouterGroup)
}

// Routes はサーバーに登録するルートグループ。nilのグループは登録しない。
type Routes struct {
	// Auth は認証グループ。
	Auth RouteGroup
	// Federated は外部IDプロバイダー認証グループ。Authの配下にネストする。
	Federated RouteGroup
	// Journal は日記エントリーグループ。
	Journal RouteGroup
	// Insights は集計グループ。
	Insights RouteGroup
	// Search は検索グループ。
	Search RouteGroup
}

// Options はサーバーの設定。
type Options struct {
	// Addr はリッスンアドレス。
	Addr string
	// AllowedOrigins はクロスオリジンリクエストを許可するオリジン。
	AllowedOrigins []string
	// Logger はサーバーのロガー。nilの場合はslog.Default()を使用する。
	Logger *slog.Logger
	// Routes は登録するルートグループ。
	Routes Routes
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。0以下の場合は10秒。
	ShutdownTimeout time.Duration
}

// Server はAPIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はリッスンアドレス。
	addr string
	// logger はサーバーのロガー。
	logger *slog.Logger
	// metrics はリクエストメトリクス。
	metrics *middleware.Metrics
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout time.Duration
}

// New は新しいサーバーを生成する。
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		router:          gin.New(),
		addr:            opts.Addr,
		logger:          logger,
		metrics:         middleware.NewMetrics(),
		shutdownTimeout: shutdownTimeout,
	}
	s.router.Use(
		middleware.RequestLogger(logger),
		s.metrics.Middleware(),
		middleware.FailureNormalizer(logger),
		middleware.NewOriginGate(opts.AllowedOrigins, logger).Middleware(),
		middleware.ParseBody(),
		middleware.Diagnostics(logger),
	)
	s.setupRoutes(opts.Routes)

	return s
}

// setupRoutes はユーティリティエンドポイントとルートグループを登録する。
func (s *Server) setupRoutes(routes Routes) {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RootMessage)
	})
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, PingMessage)
	})

	// アイコンのリクエストはルートグループに届く前に空で返す
	s.router.GET("/favicon.ico", noContent)
	s.router.GET("/favicon.png", noContent)

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.mount(PrefixAuth, routes.Auth)
	s.mount(PrefixFederated, routes.Federated)
	s.mount(PrefixJournal, routes.Journal)
	s.mount(PrefixInsights, routes.Insights)
	s.mount(PrefixSearch, routes.Search)

	s.router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithFailure(c, http.StatusNotFound, messageNoRoute)
	})
}

// mount はルートグループをプレフィックスに登録する。
func (s *Server) mount(prefix string, group RouteGroup) {
	if group == nil {
		s.logger.Warn("ルートグループが設定されていないため登録をスキップします", "prefix", prefix)
		return
	}
	group.Register(s.router.Group(prefix))
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Handler はサーバーのHTTPハンドラーを返す。
// リッスンせずにリクエストを処理するサーバーレス環境向け。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はアドレスをリッスンし、ctxが終了するまでリクエストを処理する。
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("リッスンに失敗 (addr=%s): %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnでリクエストを処理する。
// ctxが終了すると処理中のリクエストの完了を待ってからシャットダウンする。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	s.logger.Info("サーバーを起動します", "addr", ln.Addr().String())
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("サーバーを停止します")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーの実行に失敗: %w", err)
	}
}
