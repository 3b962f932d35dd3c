package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"plant-config/internal/apperr"
	"plant-config/internal/config"
	"plant-config/internal/configio"
	"plant-config/internal/document"
	"plant-config/internal/store"
	"plant-config/internal/validation"
)

// errInvalid 校验未通过时命令以非零状态退出，详细问题已打印
var errInvalid = errors.New("配置验证未通过")

// cli 命令共享的状态
type cli struct {
	configPath string
	dbPath     string
	verbose    bool
	out        io.Writer
	logger     *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "plantctl",
		Short:         "产线配置的校验、导入与导出",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			c.logger = slog.New(slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "配置文件路径")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite 数据库文件，覆盖配置中的 database_path")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.deleteCommand())
	return root
}

// openService 按配置打开数据库，返回的函数负责关闭
func (c *cli) openService(ctx context.Context) (*configio.Service, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	path := cfg.DatabasePath
	if c.dbPath != "" {
		path = c.dbPath
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return configio.NewService(st, nil, c.logger), func() { st.Close() }, nil
}

func readDocument(path string) (document.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return document.ParseFile(path, data)
}

func (c *cli) printVerdict(v validation.Verdict) error {
	for _, e := range v.Errors {
		fmt.Fprintf(c.out, "错误: %s\n", e)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(c.out, "警告: %s\n", w)
	}
	if !v.Valid {
		return errInvalid
	}
	fmt.Fprintf(c.out, "配置有效 (%d 个警告)\n", len(v.Warnings))
	return nil
}

func (c *cli) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "校验 JSON/YAML 配置文件，不访问数据库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return c.printVerdict(validation.Validate(tree))
		},
	}
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "校验并导入配置文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readDocument(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := svc.Import(cmd.Context(), tree)
			for _, e := range report.Errors {
				fmt.Fprintf(c.out, "错误: %s\n", e)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(c.out, "警告: %s\n", w)
			}
			if err != nil {
				return errors.New(apperr.UserMessage(err))
			}
			s := report.Statistics
			fmt.Fprintf(c.out, "%s: %s\n", report.Message, report.ProductionLineID)
			fmt.Fprintf(c.out, "  工作站 %d, 缓冲区 %d, 运输路径 %d, 工艺路线 %d, 步骤 %d, 连线 %d, 价值流 %d\n",
				s.Workstations, s.Buffers, s.TransportPaths, s.Routines, s.RoutineSteps, s.StepLinks, s.ValueStreams)
			return nil
		},
	}
}

func (c *cli) exportCommand() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export LINE_ID",
		Short: "导出产线配置",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := document.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, closeFn, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			data, err := svc.Export(cmd.Context(), args[0], f)
			if err != nil {
				return errors.New(apperr.UserMessage(err))
			}
			switch out {
			case "-":
				_, err = c.out.Write(data)
				return err
			case "":
				out = document.ExportFilename(args[0], f)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			fmt.Fprintf(c.out, "已导出到 %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "导出格式: json 或 yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件，默认 production_line_<id>.<ext>，- 表示标准输出")
	return cmd
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check LINE_ID",
		Short: "校验数据库中已存在的产线",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := svc.ValidateExisting(cmd.Context(), args[0])
			if err != nil {
				return errors.New(apperr.UserMessage(err))
			}
			return c.printVerdict(v)
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete LINE_ID",
		Short: "删除产线及其全部记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.DeleteLine(cmd.Context(), args[0]); err != nil {
				return errors.New(apperr.UserMessage(err))
			}
			fmt.Fprintf(c.out, "产线 %s 已删除\n", args[0])
			return nil
		},
	}
}
