package commands

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"code.cloudfoundry.org/lager"
	"github.com/kardianos/osext"

	"depthcharge/config"
	"depthcharge/entropy"
	"depthcharge/gitclient"
	"depthcharge/pathfilter"
	"depthcharge/results"
	"depthcharge/sniff"
	"depthcharge/sniff/patterns"
	"depthcharge/trawler"
)

type ScanCommand struct {
	JSON        bool   `long:"json" description:"output findings as JSON"`
	Regex       bool   `long:"regex" description:"enable high signal pattern checks"`
	Rules       string `long:"rules" description:"JSON file of pattern name to regex, replacing the default set" value-name:"PATH"`
	Entropy     string `long:"entropy" description:"enable entropy checks (default true)" value-name:"BOOL"`
	SinceCommit string `long:"since-commit" description:"only scan commits newer than this commit hash" value-name:"SHA"`
	MaxDepth    int    `long:"max-depth" description:"maximum commit depth when walking each branch" default:"1000000" value-name:"N"`
	Branch      string `long:"branch" description:"name of the single branch to scan" value-name:"NAME"`

	IncludePaths           string `short:"i" long:"include-paths" description:"file of path regexes (one per line), at least one of which must match for a file to be scanned" value-name:"PATH"`
	ExcludePaths           string `short:"x" long:"exclude-paths" description:"file of path regexes (one per line), none of which may match for a file to be scanned" value-name:"PATH"`
	EntropyExcludePatterns string `short:"e" long:"entropy-exclude-patterns" description:"file of line regexes (one per line) excluded from entropy checks" value-name:"PATH"`

	RepoPath   string `long:"repo-path" description:"path to an already cloned repository; GIT_URL is not used" value-name:"PATH"`
	Cleanup    bool   `long:"cleanup" description:"remove the persisted findings directory when the scan ends"`
	ConfigFile string `long:"config-file" description:"path to YAML config file" value-name:"PATH"`
	Debug      bool   `long:"debug" description:"enables debug logging"`

	Args struct {
		GitURL string `positional-arg-name:"GIT_URL"`
	} `positional-args:"yes"`
}

func (command *ScanCommand) Execute(args []string) error {
	warnIfOldExecutable()

	logger := lager.NewLogger("scan")

	if command.Debug {
		logger.RegisterSink(lager.NewWriterSink(os.Stderr, lager.DEBUG))
	} else {
		logger.RegisterSink(lager.NewWriterSink(os.Stderr, lager.INFO))
	}

	cfg, err := command.resolveConfig()
	if err != nil {
		return err
	}

	if cfg.RepoPath != "" && command.Args.GitURL != "" {
		fmt.Fprintln(os.Stderr, yellow("[WARN]"), "Both --repo-path and GIT_URL given, only using:", cfg.RepoPath)
	}

	if cfg.RepoPath == "" && command.Args.GitURL == "" {
		return errors.New("a GIT_URL or --repo-path is required")
	}

	sniffer, err := buildSniffer(cfg)
	if err != nil {
		return err
	}

	findingsDir, err := os.MkdirTemp("", "depthcharge-findings")
	if err != nil {
		return err
	}

	clean := newCleanup()
	if cfg.Cleanup {
		clean.register(func() { os.RemoveAll(findingsDir) })
	}

	writer := results.NewWriter(findingsDir)
	sink := results.Tee(results.NewPrinter(os.Stdout, cfg.JSON), writer)

	t := trawler.NewTrawler(gitclient.New(), sniffer, sink)

	result, err := t.Trawl(logger, trawler.Options{
		URL:         command.Args.GitURL,
		RepoPath:    cfg.RepoPath,
		Branch:      cfg.Branch,
		SinceCommit: cfg.SinceCommit,
		MaxDepth:    cfg.MaxDepth,
	})
	if err != nil {
		clean.run()
		return err
	}

	if len(result.FoundIssues) > 0 {
		if !cfg.JSON {
			fmt.Println()
			fmt.Println(red("[FOUND]"), len(result.FoundIssues), "suspected secrets in this repository's history.")
			if !cfg.Cleanup {
				fmt.Println("Finding records kept in:", findingsDir)
			}
		}
		clean.exit(3)
	}

	clean.run()
	return nil
}

// resolveConfig layers the command line flags over the optional config file;
// flags always win.
func (command *ScanCommand) resolveConfig() (*config.Config, error) {
	cfg := &config.Config{MaxDepth: config.DefaultMaxDepth}

	if command.ConfigFile != "" {
		bs, err := os.ReadFile(command.ConfigFile)
		if err != nil {
			return nil, err
		}

		cfg, err = config.LoadConfig(bs)
		if err != nil {
			return nil, err
		}

		if cfg.MaxDepth == 0 {
			cfg.MaxDepth = config.DefaultMaxDepth
		}
	}

	if command.JSON {
		cfg.JSON = true
	}
	if command.Regex {
		cfg.Regex = true
	}
	if command.Rules != "" {
		cfg.RulesFile = command.Rules
	}
	if command.Entropy != "" {
		enabled, err := config.ParseBool(command.Entropy)
		if err != nil {
			return nil, err
		}
		cfg.Entropy = &enabled
	}
	if command.SinceCommit != "" {
		cfg.SinceCommit = command.SinceCommit
	}
	if command.MaxDepth != config.DefaultMaxDepth {
		cfg.MaxDepth = command.MaxDepth
	}
	if command.Branch != "" {
		cfg.Branch = command.Branch
	}
	if command.IncludePaths != "" {
		cfg.IncludePathsFile = command.IncludePaths
	}
	if command.ExcludePaths != "" {
		cfg.ExcludePathsFile = command.ExcludePaths
	}
	if command.EntropyExcludePatterns != "" {
		cfg.EntropyExcludeFile = command.EntropyExcludePatterns
	}
	if command.RepoPath != "" {
		cfg.RepoPath = command.RepoPath
	}
	if command.Cleanup {
		cfg.Cleanup = true
	}

	return cfg, nil
}

func buildSniffer(cfg *config.Config) (sniff.Sniffer, error) {
	var detector *entropy.Detector
	if cfg.EntropyEnabled() {
		exclusions, err := config.CompilePatternFile(cfg.EntropyExcludeFile)
		if err != nil {
			return nil, err
		}

		detector = entropy.NewDetector(exclusions)
	}

	var set patterns.Set
	if cfg.Regex {
		set = patterns.Default()

		if cfg.RulesFile != "" {
			file, err := os.Open(cfg.RulesFile)
			if err != nil {
				return nil, err
			}

			set, err = patterns.FromReader(file)
			file.Close()
			if err != nil {
				return nil, err
			}
		}
	}

	inclusions, err := config.CompilePatternFile(cfg.IncludePathsFile)
	if err != nil {
		return nil, err
	}

	exclusions, err := config.CompilePatternFile(cfg.ExcludePathsFile)
	if err != nil {
		return nil, err
	}

	return sniff.NewSniffer(detector, set, pathfilter.New(inclusions, exclusions)), nil
}

type cleanup struct {
	work []func()
}

func newCleanup() *cleanup {
	clean := &cleanup{}

	signalsCh := make(chan os.Signal, 1)
	signal.Notify(signalsCh, os.Interrupt)

	go func() {
		<-signalsCh
		log.SetFlags(0)
		log.Println("\ncleaning up...")
		clean.exit(1)
	}()

	return clean
}

func (c *cleanup) register(fn func()) {
	c.work = append(c.work, fn)
}

func (c *cleanup) run() {
	for _, w := range c.work {
		w()
	}
}

func (c *cleanup) exit(status int) {
	c.run()
	os.Exit(status)
}

func warnIfOldExecutable() {
	const twoWeeks = 14 * 24 * time.Hour

	exePath, err := osext.Executable()
	if err != nil {
		return
	}

	info, err := os.Stat(exePath)
	if err != nil {
		return
	}

	if time.Since(info.ModTime()) > twoWeeks {
		fmt.Fprintln(os.Stderr, yellow("[WARN]"), "Executable is old! Please consider running `depthcharge update`.")
	}
}
