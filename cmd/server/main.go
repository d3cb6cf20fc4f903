// Emotion Journal APIのエントリポイント。
// 設定の読み込み、IDプロバイダーの初期化、データベース接続の開始を行い、
// シグナルを受け取るまでHTTPリクエストを処理する。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/journal/internal/account"
	"github.com/nao1215/journal/internal/auth"
	"github.com/nao1215/journal/internal/config"
	"github.com/nao1215/journal/internal/database"
	"github.com/nao1215/journal/internal/identity"
	"github.com/nao1215/journal/internal/journal"
	"github.com/nao1215/journal/internal/logging"
	"github.com/nao1215/journal/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "サーバーの実行に失敗: %v\n", err)
		os.Exit(1)
	}
}

// run はサーバーを組み立てて、ctxが終了するまで実行する。
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	verifier := initIdentity(cfg, logger)

	cache := database.NewCache(cfg.DatabaseURL, cfg.ConnectTimeout, logger)
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("データベース接続のクローズに失敗", "error", err)
		}
	}()
	go cache.Warm(ctx)

	journals := journal.NewHandler(cache, verifier)
	accounts := account.NewHandler(cache, verifier)

	srv := server.New(server.Options{
		Addr:           cfg.Addr(),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		Routes: server.Routes{
			Auth:      account.AuthRoutes{Handler: accounts},
			Federated: account.FederatedRoutes{Handler: accounts},
			Journal:   journal.JournalRoutes{Handler: journals},
			Insights:  journal.InsightsRoutes{Handler: journals},
			Search:    journal.SearchRoutes{Handler: journals},
		},
	})
	return srv.Run(ctx)
}

// initIdentity はサービスアカウントからIDトークンの検証器を初期化する。
// 失敗した場合はログに記録し、認証を必要とするルートが503を返すようnilを返す。
func initIdentity(cfg config.Config, logger *slog.Logger) auth.TokenVerifier {
	client, err := identity.NewLoader("").Load(cfg.ServiceAccount)
	if err != nil {
		logger.Error("IDプロバイダーの初期化に失敗", "error", err)
		return nil
	}
	logger.Info("IDプロバイダーを初期化しました", "project_id", client.ProjectID())
	return client
}
