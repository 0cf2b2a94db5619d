package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pbaille/decktags/internal/api"
	"github.com/pbaille/decktags/internal/config"
	"github.com/pbaille/decktags/internal/decktree"
	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/engine"
	"github.com/pbaille/decktags/internal/store"
)

var (
	configPath string
	collection string
	root       string
	tagPrefix  string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	deckStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	// Interrupts are only honored before tags are written
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "decktags",
		Short: "Turn an Anki deck hierarchy into note tags",
		Long: `decktags reads the deck of every card in an Anki collection and adds one tag
per level of that deck's path to the card's note ("Language::German::Verbs"
gives Language, Language/German and Language/German/Verbs). Existing tags are
never removed, so running it twice changes nothing the second time.

Close Anki before applying.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd)
			if err != nil {
				return err
			}

			logCfg := zap.NewProductionConfig()
			level, _ := cfg.Level()
			if verbose {
				level = zapcore.DebugLevel
			}
			logCfg.Level = zap.NewAtomicLevelAt(level)
			logger, err = logCfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "path to collection.anki2")
	rootCmd.PersistentFlags().StringVar(&root, "root", "", "only convert this deck and its subdecks (e.g. \"Language::German\")")
	rootCmd.PersistentFlags().StringVar(&tagPrefix, "tag-prefix", "", "prefix for generated tags")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(decksCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())

	return rootCmd
}

// loadConfig reads the config file and lets explicit flags win
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	if flags.Changed("collection") {
		c.Collection = collection
	}
	if flags.Changed("root") {
		c.Root = root
	}
	if flags.Changed("tag-prefix") {
		c.TagPrefix = tagPrefix
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func openCollection() (*store.Collection, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("no collection given: use --collection or set collection in %s", configPath)
	}
	s, err := store.Open(cfg.Collection)
	if err != nil {
		return nil, err
	}
	s.SetFoldCase(cfg.FoldCase)
	return s, nil
}

func newEngine() (*engine.Engine, error) {
	opts, err := cfg.EngineOptions(engine.LogObserver(logger))
	if err != nil {
		return nil, err
	}
	return engine.New(opts)
}

func decksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "Show the deck tree and the tag each level becomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openCollection()
			if err != nil {
				return err
			}
			defer s.Close()

			decks, err := s.Decks(cmd.Context())
			if err != nil {
				return err
			}

			index, err := decktree.Build(decks)
			if err != nil {
				return err
			}

			e, err := newEngine()
			if err != nil {
				return err
			}

			rootPath, err := cfg.RootPath()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if index.Len() == 0 {
				fmt.Fprintln(out, "No decks found.")
				return nil
			}

			tagger := e.Tagger()
			decktree.Walk(index.Tree(), func(n *decktree.Node, depth int) {
				// Decks above the root stay as context
				if !rootPath.IsZero() && !n.Path.HasPrefix(rootPath) && !rootPath.HasPrefix(n.Path) {
					return
				}
				prefix := strings.Repeat("  ", depth)
				fmt.Fprintf(out, "%s%s  %s\n", prefix, deckStyle.Render(n.Name), tagStyle.Render(tagger.Tag(n.Path)))
			})

			return nil
		},
	}
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the tags that apply would add, without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openCollection()
			if err != nil {
				return err
			}
			defer s.Close()

			_, muts, err := convert(cmd.Context(), s)
			if err != nil {
				return err
			}

			printMutations(cmd.OutOrStdout(), muts)
			return nil
		},
	}
}

func applyCmd() *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Add hierarchy tags to every note",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openCollection()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			e, muts, err := convert(ctx, s)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(muts) == 0 {
				fmt.Fprintln(out, "All notes already carry their deck tags.")
				return nil
			}

			if cfg.Backup && !noBackup {
				dst := fmt.Sprintf("%s.%s.bak", cfg.Collection, e.RunID()[:8])
				if err := s.Backup(ctx, dst); err != nil {
					return err
				}
				fmt.Fprintf(out, "Backup: %s\n", dst)
			}

			report, err := e.Apply(ctx, muts, s)
			var aerr *engine.ApplyError
			if errors.As(err, &aerr) {
				fmt.Fprintf(out, "Tagged %d notes, %d failed:\n", len(aerr.Succeeded), len(aerr.Failed))
				for _, id := range aerr.Failed {
					fmt.Fprintf(out, "  note %d: %s\n", id, aerr.Reasons[id])
				}
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Tagged %d notes with %d tags.\n", len(report.Applied), report.Tags)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the collection backup")
	return cmd
}

func convert(ctx context.Context, s *store.Collection) (*engine.Engine, []domain.TagMutation, error) {
	e, err := newEngine()
	if err != nil {
		return nil, nil, err
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	muts, err := e.Convert(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	return e, muts, nil
}

func printMutations(out io.Writer, muts []domain.TagMutation) {
	if len(muts) == 0 {
		fmt.Fprintln(out, "Nothing to do: every note already has its deck tags.")
		return
	}

	tags := 0
	for _, m := range muts {
		fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("note %d", m.NoteID)))
		for _, t := range m.Add {
			fmt.Fprintf(out, "  + %s\n", tagStyle.Render(t))
		}
		tags += len(m.Add)
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d notes, %d tags to add", len(muts), tags)))
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openCollection()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			opts, err := cfg.EngineOptions(engine.LogObserver(logger))
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Addr
			}

			server := api.New(s, opts, addr, logger)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
			return nil
		},
	}
}
