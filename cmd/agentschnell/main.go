package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/codefionn/agentschnell/internal/browser"
	"github.com/codefionn/agentschnell/internal/codeindex"
	"github.com/codefionn/agentschnell/internal/config"
	"github.com/codefionn/agentschnell/internal/llm"
	"github.com/codefionn/agentschnell/internal/logger"
	"github.com/codefionn/agentschnell/internal/provider"
	"github.com/codefionn/agentschnell/internal/retry"
	"github.com/codefionn/agentschnell/internal/router"
	"github.com/codefionn/agentschnell/internal/securemem"
	"github.com/codefionn/agentschnell/internal/session"
	"github.com/codefionn/agentschnell/internal/terminal"
	"github.com/codefionn/agentschnell/internal/tools"
)

// Exit statuses. Scripts depend on being able to tell a misconfiguration
// apart from an upstream outage.
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitExhausted     = 3
	exitMaxTurns      = 4
)

type options struct {
	configPath   string
	model        string
	conversation string
	branch       string
	list         bool
	noBrowser    bool
	noTerminal   bool
	noCodeSearch bool
	prompt       string
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfiguration)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitStatus(err))
	}
}

func exitStatus(err error) int {
	switch {
	case router.IsMaxTurns(err):
		return exitMaxTurns
	case llm.IsConfiguration(err):
		return exitConfiguration
	case retry.IsExhausted(err), router.IsAllProvidersFailed(err):
		return exitExhausted
	default:
		return exitFailure
	}
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("agentschnell", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.model, "model", "", "model reference, e.g. anthropic/claude-sonnet-4-0 or openrouter/moonshotai/kimi-k2")
	fs.StringVar(&opts.conversation, "conversation", "default", "conversation name")
	fs.StringVar(&opts.branch, "branch", "", "switch to a conversation branch before sending the prompt")
	fs.BoolVar(&opts.list, "list", false, "list stored conversations and exit")
	fs.BoolVar(&opts.noBrowser, "no-browser", false, "do not provision the browser collaborator")
	fs.BoolVar(&opts.noTerminal, "no-terminal", false, "do not provision the terminal collaborator")
	fs.BoolVar(&opts.noCodeSearch, "no-code-search", false, "do not provision the code-search collaborator")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.prompt = strings.TrimSpace(strings.Join(fs.Args(), " "))
	return opts, nil
}

func run(opts *options) (err error) {
	if opts.configPath == "" {
		opts.configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return llm.NewConfigurationError("config", "%v", err)
	}

	if envLevel := strings.TrimSpace(os.Getenv("AGENTSCHNELL_LOG_LEVEL")); envLevel != "" {
		cfg.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("AGENTSCHNELL_LOG_PATH")); envPath != "" {
		cfg.LogPath = envPath
	}
	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	securemem.Init()
	defer securemem.Cleanup()

	store, err := session.NewStore(cfg.ConversationDir)
	if err != nil {
		return err
	}

	if opts.list {
		return listConversations(store)
	}

	prompt := opts.prompt
	if prompt == "" {
		prompt, err = readPromptFromStdin()
		if err != nil {
			return err
		}
	}
	if prompt == "" {
		return llm.NewConfigurationError("cli", "no prompt given; pass it as arguments or on stdin")
	}

	providerMgr := provider.NewManager()
	defer providerMgr.Close()
	for name, settings := range cfg.Providers {
		if settings.APIKey != "" {
			providerMgr.SetCredential(name, settings.APIKey)
		}
		if settings.Model != "" {
			providerMgr.SetModel(name, settings.Model)
		}
	}

	modelRef := opts.model
	if modelRef == "" {
		modelRef = cfg.DefaultModel
	}
	ref, err := provider.ParseRef(modelRef)
	if err != nil {
		return err
	}

	sess, err := store.Open(opts.conversation)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Warn("Failed to close session cleanly: %v", closeErr)
		}
	}()

	if opts.branch != "" {
		if err := sess.SwitchBranch(opts.branch); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := provisionTools(ctx, cfg, opts, sess)

	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.RetryBaseDelay(),
		AttemptTimeout: cfg.RetryAttemptTimeout(),
	}
	r := router.New(providerMgr, registry, sess, ref, policy, router.Options{
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		MaxToolTurns: cfg.MaxToolTurns,
	})

	answer, err := r.Converse(ctx, prompt)
	if err != nil {
		if router.IsAllProvidersFailed(err) && !providerMgr.HasCredential(ref.Provider) {
			fmt.Fprintln(os.Stderr, providerMgr.MissingKeyHelp())
		}
		return err
	}

	fmt.Println(answer)
	return nil
}

// provisionTools builds the tool registry. Every tool is always registered;
// a collaborator that is disabled or fails to start stays nil, and its tool
// reports the capability as unavailable instead of erroring the conversation.
func provisionTools(ctx context.Context, cfg *config.Config, opts *options, sess *session.Session) *tools.Registry {
	registry := tools.NewRegistry()

	var termSession tools.TerminalSession
	if cfg.Capabilities.Terminal && !opts.noTerminal {
		workDir, _ := os.Getwd()
		term, err := terminal.NewSession(workDir)
		if err != nil {
			logger.Warn("Terminal collaborator unavailable: %v", err)
		} else {
			sess.Own(term)
			termSession = term
		}
	}
	registry.Register(tools.NewTerminalCommandTool(termSession))

	var browserSession tools.BrowserSession
	if cfg.Capabilities.Browser && !opts.noBrowser {
		b, err := browser.NewSession(ctx)
		if err != nil {
			logger.Warn("Browser collaborator unavailable: %v", err)
		} else {
			sess.Own(b)
			browserSession = b
		}
	}
	registry.Register(tools.NewBrowserActionTool(browserSession))

	var index tools.CodeIndex
	if cfg.Capabilities.CodeSearch && !opts.noCodeSearch {
		workDir, _ := os.Getwd()
		idx, err := codeindex.New(workDir, filepath.Join(sess.Dir, "index.db"))
		if err != nil {
			logger.Warn("Code-search collaborator unavailable: %v", err)
		} else {
			sess.Own(idx)
			index = idx
		}
	}
	registry.Register(tools.NewCodeSearchTool(index))

	return registry
}

func listConversations(store *session.Store) error {
	list, err := store.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, meta := range list {
		fmt.Printf("%-32s %4d messages  %s\n", meta.Name, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func readPromptFromStdin() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
