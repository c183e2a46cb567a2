// Package config loads celfmt-ui settings.
//
// Values are layered, later sources overriding earlier ones:
// defaults, the YAML file named by -config (or CELFMT_CONFIG), the
// environment with a .env file filling in unset variables, then flags.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/celfmt-ui/errors"
)

// DefaultWASM is the module location used when none is configured.
const DefaultWASM = "celfmt.wasm"

// Config is the complete celfmt-ui configuration.
type Config struct {
	WASM             string   `yaml:"wasm"`
	CacheDir         string   `yaml:"cache_dir"`
	MemoryLimitPages uint32   `yaml:"memory_limit_pages"`
	S3               S3Config `yaml:"s3"`
	Log              Log      `yaml:"log"`

	// Input and Output select batch mode. Empty or "-" means stdin or
	// stdout; a non-terminal stdin selects batch mode as well.
	Input  string `yaml:"-"`
	Output string `yaml:"-"`
}

// S3Config configures the object store used for s3:// module locations.
// It is only consulted when Endpoint is set.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Log configures the diagnostic logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`
}

// Batch reports whether input or output redirection was requested.
func (c *Config) Batch() bool {
	return c.Input != "" || c.Output != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WASM: DefaultWASM,
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load parses args (without the program name) and layers every source.
func Load(args []string) (*Config, error) {
	return load(args, os.LookupEnv, os.Stderr)
}

func load(args []string, lookupEnv func(string) (string, bool), usage io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("celfmt-ui", flag.ContinueOnError)
	fs.SetOutput(usage)

	var (
		configPath = fs.String("config", "", "YAML config file")
		envFile    = fs.String("env-file", ".env", "dotenv file read for unset CELFMT_* variables")
		wasm       = fs.String("wasm", "", "formatter module location (path, file://, http(s)://, s3://)")
		cacheDir   = fs.String("cache-dir", "", "compilation cache directory")
		memLimit   = fs.Uint("memory-limit", 0, "guest memory limit in 64KiB pages")
		input      = fs.String("i", "", "input file for batch mode, stdin when empty or -")
		output     = fs.String("o", "", "output file for batch mode, stdout when empty or -")
		logLevel   = fs.String("log-level", "", "log level (debug, info, warn, error)")
		logFormat  = fs.String("log-format", "", "log format (console, json)")
		logFile    = fs.String("log-file", "", "log file, stderr when empty")
	)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse flags")
	}

	cfg := Default()

	path := *configPath
	if path == "" {
		path, _ = lookupEnv("CELFMT_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotenv(*envFile)
	if err != nil {
		return nil, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "wasm":
			cfg.WASM = *wasm
		case "cache-dir":
			cfg.CacheDir = *cacheDir
		case "memory-limit":
			cfg.MemoryLimitPages = uint32(*memLimit)
		case "i":
			cfg.Input = *input
		case "o":
			cfg.Output = *output
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(errors.PhaseConfig, "config file", path)
		}
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(path).
			Detail("decode config file").
			Cause(err).
			Build()
	}
	return nil
}

// readDotenv reads path if it exists. A missing file is not an error.
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "read "+path)
	}
	return vars, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("CELFMT_WASM", &c.WASM)
	str("CELFMT_CACHE_DIR", &c.CacheDir)
	str("CELFMT_S3_ENDPOINT", &c.S3.Endpoint)
	str("CELFMT_S3_REGION", &c.S3.Region)
	str("CELFMT_S3_ACCESS_KEY", &c.S3.AccessKey)
	str("CELFMT_S3_SECRET_KEY", &c.S3.SecretKey)
	str("CELFMT_LOG_LEVEL", &c.Log.Level)
	str("CELFMT_LOG_FORMAT", &c.Log.Format)
	str("CELFMT_LOG_FILE", &c.Log.File)

	if v, ok := lookup("CELFMT_MEMORY_LIMIT_PAGES"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("CELFMT_MEMORY_LIMIT_PAGES").
				Value(v).
				Cause(err).
				Build()
		}
		c.MemoryLimitPages = uint32(n)
	}
	if v, ok := lookup("CELFMT_S3_USE_SSL"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("CELFMT_S3_USE_SSL").
				Value(v).
				Cause(err).
				Build()
		}
		c.S3.UseSSL = b
	}
	return nil
}

// Validate checks values that cannot be checked while decoding.
func (c *Config) Validate() error {
	if c.WASM == "" {
		return errors.InvalidInput(errors.PhaseConfig, "wasm location is empty")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}
