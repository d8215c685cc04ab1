// Package main provides the mychat CLI entry point.
// mychat is a small chat front-end for hosted completion APIs with a running cost tally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mychat/internal/config"
	"mychat/internal/logger"
	"mychat/internal/session"
	"mychat/internal/shell"
	"mychat/internal/version"
	"mychat/internal/web"
	"mychat/pkg/chattypes"
)

var (
	configFile    string
	listenAddr    string
	logLevel      string
	logFile       string
	debugHTTP     bool
	markdownStyle string
	detailed      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mychat",
	Short: "mychat - a minimal chat front-end with cost tracking",
	Long: `mychat serves a single-page chat UI backed by hosted completion APIs
(OpenAI, Anthropic, Gemini) and keeps a running dollar-cost tally per conversation.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat UI",
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	RunE:  runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		if detailed {
			cmd.Println(version.GetDetailedVersion())
			return
		}
		cmd.Println(version.GetFormattedVersion())
	},
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./mychat.yaml, then <config dir>/mychat/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&debugHTTP, "debug-http", false, "Log provider HTTP traffic with credentials masked")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on [default: :8501]")
	rootCmd.Flags().AddFlag(serveCmd.Flags().Lookup("listen"))
	chatCmd.Flags().StringVar(&markdownStyle, "style", "auto", "Markdown style (auto|dark|light|notty|ascii)")
	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Include build details")

	bindings := map[string]string{
		"log_level":  "log-level",
		"log_file":   "log-file",
		"debug_http": "debug-http",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}
	if err := viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding listen flag: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initLogger)
}

func initLogger() {
	if err := logger.Configure(logLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and reapplies the logger settings it carries.
// The log file is reopened only if the config names a different one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), config.LoadOptions{ConfigFile: configFile})
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, "notty")
	if err != nil {
		return err
	}

	store := web.NewStore(web.StoreOptions{
		SystemPrompt:  cfg.SystemPrompt,
		TTL:           cfg.SessionTTL,
		Tier:          chattypes.TierFast,
		Temperature:   cfg.Temperature,
		RatePerMinute: cfg.RateLimit.PerMinute,
		Burst:         cfg.RateLimit.Burst,
	})
	srv, err := web.NewServer(web.Options{
		Addr:      cfg.Listen,
		Store:     store,
		Completer: a.completion,
		Models:    cfg,
		Markdown:  a.markdown,
		Debug:     a.trafficRecorder(),

		Version:        version.GetBaseVersion(),
		Development:    version.IsDevelopment(),
		CatalogVersion: a.pricing.CatalogVersion(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting mychat", "version", version.GetBaseVersion(), "listen", cfg.Listen, "config", cfg.ConfigFileUsed)
	return srv.ListenAndServe(ctx)
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	style := markdownStyle
	if style == "auto" {
		style = shell.DetectStyle(os.Stdout)
	}
	a, err := newApp(cfg, style)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer func() { _ = rl.Close() }()

	if err := a.markdown.SetWordWrap(shell.WrapWidth(readline.GetScreenWidth())); err != nil {
		logger.Warn("Keeping default markdown wrap width", "error", err)
	}

	opts := shell.Options{
		Session:     session.New(cfg.SystemPrompt),
		Completer:   a.completion,
		Models:      cfg,
		Renderer:    a.markdown,
		Out:         rl.Stdout(),
		Tier:        chattypes.TierFast,
		Temperature: cfg.Temperature,
	}
	if a.debug != nil {
		opts.Traffic = a.debug
	}
	chat, err := shell.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(rl.Stdout(), version.GetFormattedVersion())
	fmt.Fprintln(rl.Stdout(), "Type '\\help' for commands or '\\exit' to quit.")
	return chat.Run(ctx, rl)
}
