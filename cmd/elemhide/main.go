package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bnema/elemhide/internal/fetcher"
	"github.com/bnema/elemhide/internal/models"
	"github.com/bnema/elemhide/internal/parser"
	"github.com/bnema/elemhide/internal/selector"
	"github.com/bnema/elemhide/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
	cfg     models.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "elemhide",
	Short: "Apply element hiding emulation filters to HTML pages",
	Long: `A tool that applies Adblock Plus element hiding emulation filters
(:-abp-has and :-abp-properties) to HTML pages and writes the hidden result.`,
	SilenceUsage: true,
}

var applyCmd = &cobra.Command{
	Use:   "apply [pages...]",
	Short: "Apply filters to pages (files or URLs)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runApply,
}

var watchCmd = &cobra.Command{
	Use:   "watch <page>",
	Short: "Keep filters applied to a page file while it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var parseCmd = &cobra.Command{
	Use:   "parse <selector>",
	Short: "Show how an extended selector is split and parsed",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured filter lists",
	RunE:  runList,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/elemhide.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	for _, cmd := range []*cobra.Command{applyCmd, watchCmd} {
		cmd.Flags().StringSliceP("filters", "f", nil, "filter list files or URLs (default: configured lists)")
		cmd.Flags().StringSliceP("selector", "s", nil, "extra extended selector, may be repeated")
		cmd.Flags().String("host", "", "host domain specific filters are matched against for local pages")
		cmd.Flags().Bool("plain", false, "also apply plain element hiding filters")
	}
	applyCmd.Flags().StringP("output", "o", "", "output directory (default from config)")
	watchCmd.Flags().StringP("output", "o", "", "file the filtered page is written to")

	rootCmd.AddCommand(applyCmd, watchCmd, parseCmd, listCmd, initCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("elemhide")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	// Set defaults
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("emulation.poll_interval", "3s")
	viper.SetDefault("emulation.settle", "500ms")
	viper.SetDefault("emulation.concurrency", 4)
	viper.SetDefault("output.dir", "./output")
	viper.SetDefault("output.inject_styles", true)
	viper.SetDefault("output.hide_inline", true)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zc.Encoding = "console"
	return zc.Build()
}

// newRunner loads the filters named by the command flags and builds a
// session runner for them
func newRunner(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (*session.Runner, error) {
	sources, _ := cmd.Flags().GetStringSlice("filters")
	selectors, _ := cmd.Flags().GetStringSlice("selector")
	host, _ := cmd.Flags().GetString("host")
	plain, _ := cmd.Flags().GetBool("plain")

	f := fetcher.New(cfg.HTTP)
	filters, err := loadFilters(ctx, f, sources)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 && len(selectors) == 0 {
		return nil, fmt.Errorf("no filters: pass --filters or --selector, or enable lists in the config")
	}

	opts := []session.Option{
		session.WithFetcher(f),
		session.WithLogger(logger),
		session.WithSelectors(selectors...),
		session.WithHost(host),
	}
	if plain {
		opts = append(opts, session.WithPlainCosmetic())
	}
	return session.New(cfg, filters, opts...), nil
}

// loadFilters reads filter lists from files or URLs, or the enabled lists of
// the config when sources is empty
func loadFilters(ctx context.Context, f *fetcher.Fetcher, sources []string) ([]models.Filter, error) {
	type named struct{ name, location string }

	var lists []named
	for _, s := range sources {
		lists = append(lists, named{name: s, location: s})
	}
	if len(lists) == 0 {
		for _, l := range cfg.EnabledLists() {
			lists = append(lists, named{name: l.Name, location: l.URL})
		}
	}

	var all []models.Filter
	for _, list := range lists {
		fmt.Printf("  Loading %s...\n", list.name)

		var data []byte
		var err error
		if strings.HasPrefix(list.location, "http://") || strings.HasPrefix(list.location, "https://") {
			data, err = f.Fetch(ctx, list.location)
		} else {
			data, err = os.ReadFile(list.location)
		}
		if err != nil {
			fmt.Printf("    ERROR: %v\n", err)
			continue
		}

		// fresh parser per list for accurate stats
		p := parser.New()
		filters, err := p.Parse(bytes.NewReader(data))
		if err != nil {
			fmt.Printf("    ERROR parsing: %v\n", err)
			continue
		}
		stats := p.Stats()
		fmt.Printf("    Parsed: %d lines, %d emulation, %d cosmetic (skipped: %d)\n",
			stats.Total, stats.Emulation, stats.Cosmetic, stats.Unsupported)
		if verbose {
			for reason, count := range stats.SkipReasons {
				fmt.Printf("      - %s: %d\n", reason, count)
			}
		}

		all = append(all, filters...)
	}
	return all, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Output.Dir = output
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Loading filters...")
	runner, err := newRunner(ctx, cmd, logger)
	if err != nil {
		return err
	}

	fmt.Printf("\nApplying filters to %d pages...\n", len(args))
	failed := 0
	for _, res := range runner.RunBatch(ctx, args) {
		if res.Err != nil {
			failed++
			fmt.Printf("  %s: ERROR: %v\n", res.Source, res.Err)
			continue
		}
		fmt.Printf("  %s: %d selectors, %d elements hidden -> %s\n",
			res.Source, len(res.Selectors), res.Hidden, res.Output)
		if verbose {
			for i, sel := range res.Selectors {
				fmt.Printf("      %s  (%s)\n", sel, res.Filters[i])
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(args))
	}
	fmt.Println("\nDone!")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	cfg.Output.Dir = ""

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Loading filters...")
	runner, err := newRunner(ctx, cmd, logger)
	if err != nil {
		return err
	}

	page := args[0]
	fmt.Printf("\nWatching %s (Ctrl+C to stop)\n", page)
	return runner.Watch(ctx, page, func(res *session.Result) {
		if res.Err != nil {
			fmt.Printf("  ERROR: %v\n", res.Err)
			return
		}
		fmt.Printf("  %d passes, %d selectors, %d elements hidden\n",
			res.Stats.Passes, res.Stats.Selectors, res.Stats.Elements)
		if output == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			return
		}
		if err := os.WriteFile(output, []byte(res.HTML), 0644); err != nil {
			fmt.Printf("  ERROR writing %s: %v\n", output, err)
		}
	})
}

func runParse(cmd *cobra.Command, args []string) error {
	groups := selector.Split(args[0])
	fmt.Printf("%d selector groups:\n", len(groups))

	for i, group := range groups {
		fmt.Printf("\n  [%d] %s\n", i+1, strings.TrimSpace(group))
		chain, err := selector.Parse(strings.TrimSpace(group))
		if err != nil {
			fmt.Printf("      ERROR: %v\n", err)
			continue
		}
		printChain(chain, "      ")
		if selector.RequiresHiding(chain) {
			fmt.Printf("      (matches are hidden element by element)\n")
		}
	}
	return nil
}

func printChain(chain []selector.Selector, indent string) {
	for _, node := range chain {
		switch n := node.(type) {
		case *selector.HasSelector:
			fmt.Printf("%shas\n", indent)
			for _, inner := range n.Inner() {
				printChain(inner, indent+"  ")
			}
		case *selector.PropsSelector:
			fmt.Printf("%sproperties %s\n", indent, n)
		default:
			fmt.Printf("%splain %q\n", indent, n)
		}
	}
}

func runList(cmd *cobra.Command, args []string) error {
	fmt.Println("Configured filter lists:")
	fmt.Println()
	for _, list := range cfg.Lists {
		status := "enabled"
		if !list.Enabled {
			status = "disabled"
		}
		fmt.Printf("  [%s] %s\n", status, list.Name)
		fmt.Printf("         %s\n\n", list.URL)
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/elemhide.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	defaultConfig := `# elemhide configuration

# HTTP client settings, used for filter lists and pages
[http]
timeout = "30s"
retries = 3

# Re-evaluation of filters on live pages
[emulation]
poll_interval = "3s"  # 0 disables polling, mutations still trigger passes
settle = "500ms"      # how long a page is kept live before it is written
concurrency = 4       # pages processed in parallel by apply

# Output settings
[output]
dir = "./output"
inject_styles = true  # add a display: none rule for matched selectors
hide_inline = true    # set display: none on matched elements

# Filter lists
# Set enabled = false to skip a list

[[lists]]
name = "easylist"
url = "https://easylist.to/easylist/easylist.txt"
enabled = true

[[lists]]
name = "abp-filters-anti-cv"
url = "https://easylist-downloads.adblockplus.org/abp-filters-anti-cv.txt"
enabled = true

[[lists]]
name = "easyprivacy"
url = "https://easylist.to/easylist/easyprivacy.txt"
enabled = false
`

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}
