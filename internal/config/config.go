// Package config loads the tunables enumerated in spec §6 into a
// concrete struct: a YAML file for checked-in defaults, overridable by
// environment variables for local development and test tuning. Neither
// path is ever consulted on the hot path; Load runs once at process
// start and the resulting Config is handed to the profiler, recorder and
// orchestrator as plain fields.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config collects every tunable spec §6 lists by name.
type Config struct {
	MaxTraceLength     int `yaml:"maxTraceLength"`
	MaxTraceComplexity int `yaml:"maxTraceComplexity"`
	MaxRecursionDepth  int `yaml:"maxRecursionDepth"`
	MaxSideExits       int `yaml:"maxSideExits"`
	MaxRecordingTimeMs int `yaml:"maxRecordingTimeMs"`

	HotLoopThreshold     int `yaml:"hotLoopThreshold"`
	HotFunctionThreshold int `yaml:"hotFunctionThreshold"`
	SideExitHotThreshold int `yaml:"sideExitHotThreshold"`

	RecordLoops                 bool `yaml:"recordLoops"`
	RecordMethodCalls           bool `yaml:"recordMethodCalls"`
	RecordRecursion             bool `yaml:"recordRecursion"`
	RecordSideExits             bool `yaml:"recordSideExits"`
	UseTypeSpeculation          bool `yaml:"useTypeSpeculation"`
	UseShapeSpeculation         bool `yaml:"useShapeSpeculation"`
	UseConstantSpeculation      bool `yaml:"useConstantSpeculation"`
	UseInlining                 bool `yaml:"useInlining"`
	EnableJIT                   bool `yaml:"enableJIT"`
	EnableBackgroundCompilation bool `yaml:"enableBackgroundCompilation"`

	TraceBlacklist []string `yaml:"traceBlacklist"`
}

// Default returns the spec §6 defaults.
func Default() Config {
	return Config{
		MaxTraceLength:       10000,
		MaxTraceComplexity:   200,
		MaxRecursionDepth:    5,
		MaxSideExits:         20,
		MaxRecordingTimeMs:   1000,
		HotLoopThreshold:     10,
		HotFunctionThreshold: 20,
		SideExitHotThreshold: 10,

		RecordLoops:                 true,
		RecordMethodCalls:           true,
		RecordRecursion:             true,
		RecordSideExits:             true,
		UseTypeSpeculation:          true,
		UseShapeSpeculation:         true,
		UseConstantSpeculation:      true,
		UseInlining:                 true,
		EnableJIT:                   true,
		EnableBackgroundCompilation: true,
	}
}

// Load reads a YAML config file, if path is non-empty, over the spec §6
// defaults, then applies environment overrides via applyEnvOverrides. A
// missing .env file (envFile) is not an error; godotenv.Load is best
// effort for local development.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets SENTRAJIT_* environment variables win over the
// YAML file, for tuning a single run without editing the checked-in
// config.
func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.MaxTraceLength, "SENTRAJIT_MAX_TRACE_LENGTH")
	overrideInt(&cfg.MaxTraceComplexity, "SENTRAJIT_MAX_TRACE_COMPLEXITY")
	overrideInt(&cfg.MaxRecursionDepth, "SENTRAJIT_MAX_RECURSION_DEPTH")
	overrideInt(&cfg.MaxSideExits, "SENTRAJIT_MAX_SIDE_EXITS")
	overrideInt(&cfg.MaxRecordingTimeMs, "SENTRAJIT_MAX_RECORDING_TIME_MS")
	overrideInt(&cfg.HotLoopThreshold, "SENTRAJIT_HOT_LOOP_THRESHOLD")
	overrideInt(&cfg.HotFunctionThreshold, "SENTRAJIT_HOT_FUNCTION_THRESHOLD")
	overrideInt(&cfg.SideExitHotThreshold, "SENTRAJIT_SIDE_EXIT_HOT_THRESHOLD")
	overrideBool(&cfg.EnableJIT, "SENTRAJIT_ENABLE_JIT")
	overrideBool(&cfg.EnableBackgroundCompilation, "SENTRAJIT_ENABLE_BACKGROUND_COMPILATION")
	overrideBool(&cfg.UseInlining, "SENTRAJIT_USE_INLINING")
}

func overrideInt(dst *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideBool(dst *bool, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

// IsBlacklisted reports whether a function name is excluded from tracing.
func (c Config) IsBlacklisted(functionName string) bool {
	for _, name := range c.TraceBlacklist {
		if name == functionName {
			return true
		}
	}
	return false
}
