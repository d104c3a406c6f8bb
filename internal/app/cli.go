package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/contesthub/internal/client"
	"github.com/hitoshi/contesthub/internal/config"
	"github.com/hitoshi/contesthub/internal/model"
)

const healthcheckTimeout = 5 * time.Second

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// 自身の /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()

	c := client.New("http://localhost:"+cfg.ServerPort, nil, slog.Default())
	return c.HealthCheck(ctx)
}

// runContests はAPIから開催予定コンテストを取得して表形式で出力する。
// argsの先頭にプラットフォームが指定された場合はそのプラットフォームのみを対象とする。
func runContests(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	c := client.New(cfg.APIURL, nil, slog.Default())

	var contests []model.Contest
	if len(args) > 0 {
		platform, err := model.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		contests = c.GetPlatformContests(ctx, platform)
	} else {
		contests = c.GetAllContests(ctx)
	}

	return writeContests(out, contests)
}

func writeContests(out io.Writer, contests []model.Contest) error {
	if len(contests) == 0 {
		_, err := fmt.Fprintln(out, "No upcoming contests.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tNAME\tSTART\tDURATION\tURL")
	for _, c := range contests {
		start := time.Unix(c.StartTimeUnix, 0).UTC().Format("2006-01-02 15:04 MST")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Platform, c.Name, start, c.Duration, c.URL)
	}
	return tw.Flush()
}

// runStats はplatform=handle形式の引数ごとにユーザー統計を取得して出力する。
// 取得はTrackerで並行に行い、失敗したプラットフォームはエラー内容を表示する。
func runStats(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	usernames, err := parseStatsArgs(args)
	if err != nil {
		return err
	}

	tracker := client.NewTracker(client.New(cfg.APIURL, nil, slog.Default()))
	states := tracker.LoadAll(ctx, usernames)

	return writeStates(out, states)
}

// parseStatsArgs は platform=handle 形式の引数を解析する。
func parseStatsArgs(args []string) (map[model.Platform]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: stats <platform>=<handle> [...]")
	}
	usernames := make(map[model.Platform]string, len(args))
	for _, arg := range args {
		slug, handle, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid argument %q: expected <platform>=<handle>", arg)
		}
		platform, err := model.ParsePlatform(slug)
		if err != nil {
			return nil, err
		}
		usernames[platform] = handle
	}
	return usernames, nil
}

func writeStates(out io.Writer, states []client.PlatformState) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tUSERNAME\tRATING\tRANK\tSOLVED\tCONTESTS\tERROR")
	for _, s := range states {
		if s.Summary == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t%s\n", s.Platform, s.Username, s.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t\n",
			s.Platform, s.Username, s.Summary.Rating, s.Summary.Rank, s.Summary.Solved, s.Summary.TotalContests)
	}
	return tw.Flush()
}
