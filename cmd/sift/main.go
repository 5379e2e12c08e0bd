package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/sift"
	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/config"
	"github.com/jward/sift/internal/corpus"
	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/finders"
	"github.com/jward/sift/internal/logger"
	"github.com/jward/sift/internal/runtime"
	"github.com/jward/sift/internal/syntax"
	"github.com/jward/sift/scripts"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var found *findingsError
		if !errors.As(err, &found) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// findingsError makes `run --fail-on-findings` exit non-zero without
// printing an error.
type findingsError struct {
	count int
}

func (e *findingsError) Error() string {
	return fmt.Sprintf("%d finding(s)", e.count)
}

// app carries state shared by all commands: the viper instance flags are
// bound to and the --config path.
type app struct {
	v          *viper.Viper
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:           "sift",
		Short:         "Run pluggable pattern finders over source code",
		Long:          "Sift parses source files with tree-sitter, runs built-in and scripted finders over every tree and caches each finder's results per project.",
		SilenceErrors: true,
		SilenceUsage:  true,
		// No Run: prints help by default.
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: sift.yaml in the working directory, if present)")
	pf.String("format", config.FormatText, "output format: json|text|sarif")
	pf.String("log-level", "", "log level: trace|debug|info|warn|error (default: SIFT_LOG_LEVEL, then info)")
	pf.String("cache", config.BackendSQLite, "cache backend: sqlite|dir|none")
	pf.String("cache-path", "", "cache location (default: .sift/cache.db or .sift/cache under the repo root)")
	pf.String("scripts-dir", "", "load finder scripts from this directory instead of the embedded set")
	a.bind(root, map[string]string{
		"format":      "output.format",
		"log-level":   "log.level",
		"cache":       "cache.backend",
		"cache-path":  "cache.path",
		"scripts-dir": "scripts.dir",
	}, true)

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newFindersCmd(a))
	root.AddCommand(newCacheCmd(a))
	return root
}

// bind ties flags to config keys so a flag given on the command line wins
// over the config file.
func (a *app) bind(cmd *cobra.Command, flagToKey map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for name, key := range flagToKey {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding --%s: %v", name, err))
		}
	}
}

// load reads the configuration and builds the logger.
func (a *app) load(cmd *cobra.Command) (*config.Config, hclog.Logger, error) {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{
		Name:   "sift",
		Level:  cfg.Log.Level,
		JSON:   cfg.Log.JSON,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, log, nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		showProgress   bool
		failOnFindings bool
	)
	cmd := &cobra.Command{
		Use:   "run [path|url]",
		Short: "Run finders over a directory or an afs URL",
		Long:  "Runs every configured finder over the files under path (default: the working directory) and prints the findings. Paths with a scheme, such as mem:// or s3://, are read through afs.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, showProgress, failOnFindings)
		},
	}

	f := cmd.Flags()
	f.Int("workers", 0, "files processed at once (default: one per CPU)")
	f.StringSlice("languages", nil, "comma-separated language filter (e.g. go,python)")
	f.StringSlice("finders", nil, "comma-separated finder names to run (default: all)")
	f.Bool("content-fingerprint", false, "key cache entries on file content as well as finder version")
	f.Bool("strict", false, "treat files with syntax errors as parse failures")
	f.BoolVar(&showProgress, "progress", false, "show a progress bar on stderr")
	f.BoolVar(&failOnFindings, "fail-on-findings", false, "exit with status 1 when anything is found")
	a.bind(cmd, map[string]string{
		"workers":             "workers",
		"languages":           "languages",
		"finders":             "finders.enabled",
		"content-fingerprint": "cache.content_fingerprint",
		"strict":              "parser.strict",
	}, false)
	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string, showProgress, failOnFindings bool) error {
	start := time.Now()
	cfg, log, err := a.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	src, root, err := openCorpus(ctx, target, cfg.Languages)
	if err != nil {
		return err
	}

	c, err := openCache(cfg, root)
	if err != nil {
		return err
	}
	defer c.Close()

	facs, err := loadFactories(cfg, log)
	if err != nil {
		return err
	}

	opts := []sift.Option{
		sift.WithFactories(facs...),
		sift.WithCache(c),
		sift.WithWorkers(cfg.Workers),
		sift.WithLogger(log),
		sift.WithParser(&syntax.SitterParser{Strict: cfg.Parser.Strict}),
		sift.WithContentFingerprint(cfg.Cache.ContentFingerprint),
		sift.WithLanguages(cfg.Languages...),
	}
	if cfg.TypeTimeout > 0 {
		opts = append(opts, sift.WithTypeTimeout(cfg.TypeTimeout))
	}
	if showProgress {
		bar := newProgress(cmd.ErrOrStderr(), src.Len())
		defer bar.finish()
		opts = append(opts, sift.WithStatus(bar.onEvent))
	}

	engine, err := sift.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	res, err := engine.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("running finders: %w", err)
	}

	if err := writeResult(cmd.OutOrStdout(), cfg.Output.Format, res); err != nil {
		return fmt.Errorf("writing %s output: %w", cfg.Output.Format, err)
	}
	log.Debug("done", "target", target, "elapsed", time.Since(start).Round(time.Millisecond))

	if n := res.Report.Len(); failOnFindings && n > 0 {
		return &findingsError{count: n}
	}
	return nil
}

// listedProvider is a corpus provider that knows its size up front.
type listedProvider interface {
	corpus.Provider
	Len() int
}

// openCorpus picks the provider for target and returns the local directory
// the cache lives under.
func openCorpus(ctx context.Context, target string, languages []string) (listedProvider, string, error) {
	if strings.Contains(target, "://") {
		u, err := corpus.NewURL(ctx, target, "", languages...)
		if err != nil {
			return nil, "", err
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		return u, wd, nil
	}

	dir, err := resolveTargetDir(target)
	if err != nil {
		return nil, "", err
	}
	d, err := corpus.NewDir(dir, corpus.WithDirLanguages(languages...))
	if err != nil {
		return nil, "", err
	}
	return d, findRepoRoot(dir), nil
}

// openCache opens the configured cache backend under root.
func openCache(cfg *config.Config, root string) (*cache.Cache, error) {
	if cfg.Cache.Backend == config.BackendNone {
		return cache.New(cache.Nop{}), nil
	}
	path := resolveCachePath(cfg, root)
	if cfg.Cache.Backend == config.BackendDir {
		return cache.New(cache.NewDirBackend(path)), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	b, err := cache.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return cache.New(b), nil
}

// resolveCachePath returns the cache path from config, relative paths
// being relative to root.
func resolveCachePath(cfg *config.Config, root string) string {
	path := cfg.CachePath(root)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// loadFactories returns the built-in finders followed by the scripted ones,
// narrowed to finders.enabled when set.
func loadFactories(cfg *config.Config, log hclog.Logger) ([]finder.Factory, error) {
	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(log)}
	if cfg.Scripts.Dir == "" {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	scripted, err := runtime.NewRuntime(cfg.Scripts.Dir, rtOpts...).Factories()
	if err != nil {
		return nil, err
	}

	all := finders.All(cfg.Finders.Options())
	for _, s := range scripted {
		all = append(all, s)
	}
	if len(cfg.Finders.Enabled) == 0 {
		return all, nil
	}

	byName := make(map[string]finder.Factory, len(all))
	for _, f := range all {
		byName[f.Identity().Name] = f
	}
	out := make([]finder.Factory, 0, len(cfg.Finders.Enabled))
	for _, name := range cfg.Finders.Enabled {
		f, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown finder %q", name)
		}
		out = append(out, f)
	}
	return out, nil
}

// progress drives a progress bar from engine status events.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("[sift]"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)}
}

func (p *progress) onEvent(ev sift.Event) {
	switch ev.Kind {
	case sift.EventFileDone, sift.EventFileFailed, sift.EventFileSkipped:
		_ = p.bar.Add(1)
	}
}

func (p *progress) finish() {
	_ = p.bar.Finish()
}

// resolveTargetDir returns the absolute path of the directory to analyse.
func resolveTargetDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}
