// 認証付きリバースプロキシリレーのエントリポイント。
// リレートークンの発行・検証と、固定アップストリームへのリクエスト転送を担当する。
// 設定は環境変数から読み込み、起動前にすべて検証する。
package main

import (
	"github.com/nao1215/sg-stats-relay/internal/config"
	"github.com/nao1215/sg-stats-relay/internal/relay"
	"github.com/nao1215/sg-stats-relay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("設定の読み込みに失敗", logger.Fields{"error": err.Error()})
	}

	if err := logger.Init(cfg.LogsDir); err != nil {
		logger.Fatal("ロガーの初期化に失敗", logger.Fields{"error": err.Error()})
	}

	server, err := relay.NewServer(cfg)
	if err != nil {
		logger.Fatal("リレーサーバーの初期化に失敗", logger.Fields{"error": err.Error()})
	}

	logger.Info("リレーサービスを起動します", logger.Fields{
		"host":   cfg.Host,
		"port":   cfg.Port,
		"target": cfg.RelayTargetURL.String(),
		"env":    cfg.Env,
	})
	if err := server.Run(); err != nil {
		logger.Fatal("リレーサービスの起動に失敗", logger.Fields{"error": err.Error()})
	}
}
