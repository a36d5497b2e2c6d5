package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"neurodeck/internal/catalog"
	"neurodeck/internal/config"
	"neurodeck/internal/dispatch"
	"neurodeck/internal/logging"
	"neurodeck/internal/onboarding"
	"neurodeck/internal/prompt"
	"neurodeck/internal/render"
	"neurodeck/internal/session"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "neurodeck",
	Short: "neurodeck - tool-call policy kernel for screen-driving agents",
	Long: `neurodeck mediates every tool call an LLM issues against an interactive
screen environment: capability-tiered tool catalogs, an onboarding gate,
workspace path sandboxing, secret-leak prevention, and the versioned
emit_screen / budgeted read_screen protocol.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// toolsCmd prints the catalog for a tier.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog for a capability tier",
	RunE:  runTools,
}

// promptCmd prints the guidance prompt for a tier.
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the model guidance prompt for a capability tier",
	RunE:  runPrompt,
}

// execCmd runs one tool call through a full session.
var execCmd = &cobra.Command{
	Use:   "exec [tool-name]",
	Short: "Execute a single tool call under the session policy",
	Long: `Runs one tool call through the dispatcher with the configured catalog,
sandbox and onboarding state. Arguments are passed as a JSON object.

Example:
  neurodeck exec read_file --args '{"path":"README.md"}'
  neurodeck exec emit_screen --args '{"html":"<h1>hello</h1>"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

// statusCmd reports the onboarding checkpoint state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show onboarding checkpoint state",
	RunE:  runStatus,
}

var (
	tierFlag       string
	onboardingFlag bool
	jsonFlag       bool
	argsFlag       string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./neurodeck.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root override")

	toolsCmd.Flags().StringVar(&tierFlag, "tier", "", "capability tier (none, standard, experimental)")
	toolsCmd.Flags().BoolVar(&onboardingFlag, "onboarding", false, "show the restricted onboarding catalog")
	toolsCmd.Flags().BoolVar(&jsonFlag, "json", false, "emit tool definitions as JSON")

	promptCmd.Flags().StringVar(&tierFlag, "tier", "", "capability tier (none, standard, experimental)")
	promptCmd.Flags().BoolVar(&onboardingFlag, "onboarding", false, "render the restricted onboarding prompt")

	execCmd.Flags().StringVar(&argsFlag, "args", "{}", "tool arguments as a JSON object")

	rootCmd.AddCommand(toolsCmd, promptCmd, execCmd, statusCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = "neurodeck.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return nil, err
		}
		cfg.Workspace.DefaultRoot = abs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	tier, err := cfg.Tier()
	if err != nil {
		return nil, err
	}
	if tierFlag != "" {
		tier, err = catalog.ParseTier(tierFlag)
		if err != nil {
			return nil, err
		}
	}

	opts := cfg.CatalogOptions()
	opts.OnboardingRequired = opts.OnboardingRequired || onboardingFlag
	return catalog.Build(tier, opts), nil
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	if jsonFlag {
		data, err := json.MarshalIndent(cat.Definitions(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if cat.Restricted() {
		fmt.Println("Catalog: onboarding (restricted)")
	} else {
		fmt.Printf("Catalog: tier %s\n", cat.Tier())
	}
	for _, tool := range cat.Tools() {
		fmt.Printf("  %-24s %s\n", tool.Name, tool.Description)
	}
	fmt.Printf("%d tool(s)\n", cat.Len())
	return nil
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	fmt.Print(prompt.BuildGuidancePrompt(cat))
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(argsFlag), &toolArgs); err != nil {
		return fmt.Errorf("invalid --args JSON: %w", err)
	}

	sess, store, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sess.Subscribe(func(ev render.StreamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("failed to encode render event", zap.Error(err))
			return
		}
		fmt.Println(string(data))
	})

	res := sess.Execute(context.Background(), dispatch.Request{
		Name:      args[0],
		Arguments: toolArgs,
	})

	if res.IsError {
		fmt.Fprintf(os.Stderr, "denied: %s\n", res.Text)
		os.Exit(1)
	}
	fmt.Println(res.Text)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := onboarding.Open(cfg.Onboarding.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := onboarding.NewHandlers(store).GetState(context.Background(), nil)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// newSession wires a session with the SQLite-backed onboarding handlers.
// Onboarding already completed in a previous run clears the gate up front.
func newSession(cfg *config.Config) (*session.Session, *onboarding.Store, error) {
	store, err := onboarding.Open(cfg.Onboarding.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	handlers := onboarding.NewHandlers(store)
	if cfg.Onboarding.Required {
		done, err := handlers.Completed(context.Background())
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if done {
			cfg.Onboarding.Required = false
		}
	}

	sess, err := session.New(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	for name, h := range handlers.Map() {
		sess.RegisterHandler(name, h)
	}
	return sess, store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
