package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/agent/human"
	"github.com/hildam/relay-flow-go/api"
	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/entity/model"
	"github.com/hildam/relay-flow-go/repo/callback"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

// runOptions 运行参数
type runOptions struct {
	configPath string
	query      string
	userName   string
	noFeedback bool
}

// newRootCmd 根命令：交互式运行舞蹈流水线
func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	root := &cobra.Command{
		Use:           "relay-flow",
		Short:         "Run multi-step LLM agent pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), consts.DancePipeline, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", conf.DefaultPath, "config file")
	root.AddCommand(newRunCmd(opts), newEvaluateCmd(opts), newServeCmd(opts))
	return root
}

// newRunCmd 运行一条流水线
func newRunCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run <dance|code>",
		Short:     "Run a pipeline, skipping stages whose output already exists",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{consts.DancePipeline, consts.CodePipeline},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "request for the first agent")
	cmd.Flags().StringVarP(&opts.userName, "user", "u", "", "user name for the dance pipeline")
	cmd.Flags().BoolVar(&opts.noFeedback, "no-feedback", false, "do not pause for feedback between stages")
	return cmd
}

// newEvaluateCmd 评估已保存的结果
func newEvaluateCmd(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "evaluate <dance|code>",
		Short:     "Score saved pipeline outputs with an LLM judge",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{consts.DancePipeline, consts.CodePipeline},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keys, err := evalKeys(args[0])
			if err != nil {
				return err
			}
			app, err := setup(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer app.close()

			j, err := app.newJudge(ctx)
			if err != nil {
				return err
			}
			fmt.Println("--- Starting Agent Evaluation (LLM-as-a-Judge) ---")
			eval, err := j.Evaluate(ctx, keys)
			if err != nil {
				return err
			}
			fmt.Printf("\n=== EVALUATION REPORT ===\nScore: %d\nFeedback: %s\n", eval.Score, eval.Feedback)
			return nil
		},
	}
}

// newServeCmd 启动 HTTP 服务
func newServeCmd(opts *runOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipelines over HTTP with server-sent events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := setup(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.connectModel(ctx); err != nil {
				return err
			}
			if addr == "" {
				addr = app.cfg.Server.Addr
			}
			api.NewServer(addr, app.factories(), logger.Named("api"), settings).Spin()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to server.addr in config")
	return cmd
}

// runPipeline 在配置的存储上运行流水线并打印结果
func runPipeline(ctx context.Context, name string, opts *runOptions) error {
	app, err := setup(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer app.close()
	if err := app.connectModel(ctx); err != nil {
		return err
	}

	console := human.NewConsole(os.Stdin, os.Stdout, settings().ReportPreview)
	req := api.RunRequest{Query: opts.query, UserName: opts.userName}

	if name == consts.DancePipeline && req.UserName == "" && !opts.noFeedback {
		fmt.Printf("\n%s\nWelcome to the Dance Agent System!\n%s\n", strings.Repeat("=", 50), strings.Repeat("=", 50))
		if req.UserName, err = console.Ask(ctx, "Enter your name: "); err != nil {
			return err
		}
	}
	if name == consts.CodePipeline && req.Query == "" {
		if req.Query, err = console.Ask(ctx, "Describe the code you need: "); err != nil {
			return err
		}
	}

	p, query, err := app.buildPipeline(ctx, app.store, name, req)
	if err != nil {
		return err
	}
	slog.Info("Query: %s", query)

	var feedback human.Provider = console
	if opts.noFeedback {
		feedback = human.None()
	}

	// 阶段事件输出到终端
	outChan := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for out := range outChan {
			fmt.Println(out)
		}
	}()

	st := settings()
	orch := agent.NewOrchestrator(app.store,
		agent.WithFeedback(feedback),
		agent.WithLogger(app.log),
		agent.WithMaxContextLength(st.MaxContextLength),
	)
	report, err := orch.Run(ctx, p, query, compose.WithCallbacks(&callback.LoggerCallback{
		Out:    outChan,
		Stages: p.Titles(),
	}))
	close(outChan)
	<-done
	if err != nil {
		return err
	}

	agent.LogReport(app.log, report, st.ReportPreview)
	printReport(report, st.ReportPreview)
	return nil
}

// printReport 打印结果预览
func printReport(report *model.Report, preview int) {
	fmt.Println("\n=== RESULTS ===")
	for _, s := range report.Slots {
		if !s.Found {
			fmt.Printf("\n❌ %s missing\n", s.Key)
			continue
		}
		fmt.Printf("\n📄 %s:\n%s\n", s.Key, model.Preview(s.Content, preview))
	}
}
