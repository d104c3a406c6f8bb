// Command contesthub はコンテスト集約APIサーバーとCLIを起動する。
//
// 使い方:
//
//	contesthub [serve]                     APIサーバーを起動する（既定）
//	contesthub migrate [up|down]           データベースマイグレーションを実行する
//	contesthub healthcheck                 自身の /health を確認する
//	contesthub contests [platform]         開催予定コンテストを表示する
//	contesthub stats platform=handle ...   ユーザー統計を表示する
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/contesthub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
