package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/lightci/standalone-runner/flags"
	"github.com/lightci/standalone-runner/probe"
)

// ProbeFileConfig configures the deadlock probe launch.
type ProbeFileConfig struct {
	// Launcher is the full coordinator invocation (fixed topology included).
	Launcher []string `yaml:"launcher"`
	// Marker is the literal success token; defaults to probe.DefaultMarker.
	Marker string `yaml:"marker"`
}

// Discoverer selection for FileConfig.
const (
	DiscovererCommand = "command"
	DiscovererGoTest  = "gotest"
)

// FileConfig is the YAML harness configuration: the framework command
// templates, the injected blocklist, and the probe launch.
type FileConfig struct {
	// Discoverer selects how tests are enumerated: "command" shells out to
	// CollectCmd, "gotest" scans a Go package for Test functions.
	Discoverer string `yaml:"discoverer"`
	// GoPackage is the package scanned in gotest mode, relative ("./pkg") or
	// module-qualified.
	GoPackage string `yaml:"go_package"`
	// CollectCmd enumerates tests, e.g.
	// ["python", "-m", "pytest", "--collect-only", "-q"].
	CollectCmd []string `yaml:"collect_cmd"`
	// NoTestsExitCode is the collect command's "nothing matched" exit code,
	// treated as an empty run rather than a failure. Defaults to pytest's 5.
	NoTestsExitCode int `yaml:"no_tests_exit_code"`
	// RunCmd runs one test; the test identifier is appended.
	RunCmd []string `yaml:"run_cmd"`
	// Blocklist entries exclude tests by substring match.
	Blocklist []string `yaml:"blocklist"`
	// PassThrough is forwarded opaquely to every test invocation.
	PassThrough []string `yaml:"pass_through"`
	// StripPrefix is removed from the front of discovered identifiers.
	StripPrefix string `yaml:"strip_prefix"`

	Probe ProbeFileConfig `yaml:"probe"`
}

var (
	defaultCollectCmd = []string{"python", "-m", "pytest", "--collect-only", "-q"}
	defaultRunCmd     = []string{"python", "-m", "pytest", "-v"}
)

func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read harness config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse harness config: %w", err)
	}

	if cfg.Discoverer == "" {
		cfg.Discoverer = DiscovererCommand
	}
	switch cfg.Discoverer {
	case DiscovererCommand:
	case DiscovererGoTest:
		if cfg.GoPackage == "" {
			return nil, errors.New("gotest discoverer requires go_package")
		}
	default:
		return nil, fmt.Errorf("unknown discoverer %q", cfg.Discoverer)
	}
	if len(cfg.CollectCmd) == 0 {
		cfg.CollectCmd = defaultCollectCmd
	}
	if len(cfg.RunCmd) == 0 {
		cfg.RunCmd = defaultRunCmd
	}
	if cfg.Probe.Marker == "" {
		cfg.Probe.Marker = probe.DefaultMarker
	}
	return &cfg, nil
}

// Config holds the application configuration
type Config struct {
	TestDir     string
	ConfigFile  string
	BatchSize   int
	Marker      string        // discovery marker/tag selecting standalone tests
	LogDir      string        // directory for per-batch shared logs
	RunInterval time.Duration // interval between test runs
	RunOnce     bool          // exit after one test run
	TestTimeout time.Duration // per-test timeout forwarded to the framework
	SkipProbe   bool          // skip the deadlock probe

	File *FileConfig

	Log zerolog.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log zerolog.Logger, testDir string, configFile string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if testDir == "" {
		return nil, errors.New("test directory is required")
	}
	if configFile == "" {
		return nil, errors.New("harness config file is required")
	}

	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}
	absConfigFile, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for harness config '%s': %w", configFile, err)
	}

	fileCfg, err := loadFileConfig(absConfigFile)
	if err != nil {
		return nil, err
	}

	batchSize := ctx.Int(flags.BatchSize.Name)
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
		}
	}

	skipProbe := ctx.Bool(flags.SkipProbe.Name)
	if !skipProbe && len(fileCfg.Probe.Launcher) == 0 {
		return nil, errors.New("probe launcher is required unless --skip-probe is set")
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		TestDir:     absTestDir,
		ConfigFile:  absConfigFile,
		BatchSize:   batchSize,
		Marker:      ctx.String(flags.Marker.Name),
		LogDir:      logDir,
		RunInterval: runInterval,
		RunOnce:     runOnce,
		TestTimeout: ctx.Duration(flags.TestTimeout.Name),
		SkipProbe:   skipProbe,
		File:        fileCfg,
		Log:         log,
	}, nil
}
