package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kevgir/internal/app"
	"kevgir/ioc"
)

var (
	configPath string
	branch     string
	allBranch  bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncer",
		Short:         "按表格中的分店 key 对账外卖平台菜单状态",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ioc.ConfigPath(), "配置文件路径")

	run := &cobra.Command{
		Use:   "run",
		Short: "对一个分店执行一次对账并输出报告",
		RunE:  runReconcile,
	}
	run.Flags().StringVar(&branch, "branch", "", "分店名称，与表格 branch_name 完全一致")
	run.Flags().BoolVar(&allBranch, "all", false, "依次对账配置中的全部分店")

	keys := &cobra.Command{
		Use:   "keys",
		Short: "列出某分店在表格中的 key 及被跳过的行",
		RunE:  listKeys,
	}
	keys.Flags().StringVar(&branch, "branch", "", "分店名称")
	_ = keys.MarkFlagRequired("branch")

	root.AddCommand(run, keys)
	return root
}

func buildService(ctx context.Context) (*app.Service, func(), error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := ioc.InitLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, cleanup, err := ioc.NewService(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("构建服务失败: %w", err)
	}
	return svc, func() {
		cleanup()
		svc.Close()
	}, nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	if branch == "" && !allBranch {
		return fmt.Errorf("必须指定 --branch 或 --all")
	}
	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if allBranch {
		return svc.RunBranches(cmd.Context())
	}
	report, err := svc.Reconcile(cmd.Context(), branch)
	if err != nil {
		return fmt.Errorf("%s 对账失败: %w", branch, err)
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d/%d 个 key 失败", report.Failed(), len(report.Keys))
	}
	return nil
}

func listKeys(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.Keys(cmd.Context(), branch)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
