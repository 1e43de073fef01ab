package esbench

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2

	EnvPrefix = "ESBENCH"
)

var (
	ProgramName           = filepath.Base(os.Args[0])
	OutputDest  io.Writer = os.Stdout

	// Every property that may be given through an ESBENCH_* variable,
	// e.g. ESBENCH_WORKLOAD or ESBENCH_ES_HOSTS.
	EnvProperties = []string{
		PropertyDB, PropertyIndexName, PropertyDocType, PropertyWorkload,
		PropertyQueryFile, PropertyAppendFile, PropertyThreadCount,
		PropertyWarmupTime, PropertyMeasureTime, PropertyCooldownTime,
		PropertyMaxSequenceLength, PropertySearchSize, PropertySeed,
		PropertyResultFile, PropertyMetricsAddr, PropertyLogLevel,
		PropertyLatencyMode, PropertyLatencySearchSize, PropertyLatencyOutput,
		PropertyLoadDataFile, PropertyLoadSeed, PropertyLoadProgressInterval,
		PropertyLoadBatchSize, PropertyWriteThreadCount, PropertyWriteTimeBound,
		PropertyWriteProgressFile, PropertyWriteReportInterval, PropertyWriteResultFile,
		PropertyExporter, PropertyExportFile, PropertyPercentiles,
		PropertyHdrHistogramMax, PropertyHdrHistogramSig,
		"es.hosts", "es.timeout", "es.username", "es.password", "es.notype",
		"mysql.host", "mysql.port", "mysql.user", "mysql.password", "mysql.db",
		"sqlite.path", "sql.timeout", "sql.createtable",
	}
)

// MakeClientFunc creates the client of a sub command.
type MakeClientFunc func(props Properties) Client

var (
	Commands = map[string]MakeClientFunc{
		"run": func(props Properties) Client {
			return NewRunner(props)
		},
		"latency": func(props Properties) Client {
			return NewLatencySampler(props, nil)
		},
		"load": func(props Properties) Client {
			return NewLoader(props, nil)
		},
		"write": func(props Properties) Client {
			return NewWriteBenchmark(props, nil)
		},
		"shell": func(props Properties) Client {
			return NewShell(props, nil)
		},
	}
)

// LoadProperties flattens everything viper knows, config file, environment
// and flags, into Properties. `-p key=value` pairs override all of them.
func LoadProperties(v *viper.Viper, pairs []string) (Properties, error) {
	props := NewProperties()
	for _, k := range v.AllKeys() {
		if value := v.GetString(k); value != "" {
			props.Add(k, value)
		}
	}
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, NewConfigurationError("invalid property: %s, should be key=value", pair)
		}
		props.Add(strings.ToLower(strings.TrimSpace(parts[0])), parts[1])
	}
	return props, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, k := range EnvProperties {
		_ = v.BindEnv(k)
	}
	return v
}

func NewRootCommand() *cobra.Command {
	v := newViper()
	var configFile string
	var pairs []string

	rootCmd := &cobra.Command{
		Use:   ProgramName,
		Short: "Benchmark a document store and search service",
		Long: `esbench drives read, search, append and mixed workloads against a
document store from concurrent workers, and reports the steady state
throughput of every worker.

Commands:
  run       Run a throughput benchmark (warmup, measure, cooldown)
  latency   Sample the latency of single searches or gets
  load      Load a data file into the index in bulk requests
  write     Measure the write throughput of concurrent writers
  shell     Interactive mode

Workloads:
  get, search, get-append, search-append, get-search

Databases:
  basic          A demo database that does nothing but echo the operations
  elasticsearch  Elasticsearch over HTTP (alias es)
  mysql, sqlite  A SQL table holding one row per document field`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewConfigurationError("%s", err)
	})

	flags := rootCmd.PersistentFlags()
	flags.String("db", PropertyDBDefault, "use the specified database binding")
	_ = v.BindPFlag(PropertyDB, flags.Lookup("db"))
	flags.StringP("index", "i", PropertyIndexNameDefault, "use the index name instead of the default")
	_ = v.BindPFlag(PropertyIndexName, flags.Lookup("index"))
	flags.StringP("type", "t", PropertyDocTypeDefault, "use the document type instead of the default")
	_ = v.BindPFlag(PropertyDocType, flags.Lookup("type"))
	flags.String("log-level", PropertyLogLevelDefault, "log level: verbose, debug, info, warn, error or quiet")
	_ = v.BindPFlag(PropertyLogLevel, flags.Lookup("log-level"))
	flags.StringVarP(&configFile, "config", "c", "", "read properties from a config file (yaml, json, toml or properties)")
	flags.StringArrayVarP(&pairs, "property", "p", nil, "specify a property value as name=value")

	// Sub command flags are bound when the command runs, since several
	// sub commands map a flag to the same property.
	newSubCommand := func(name, short string, defineFlags func(f *pflag.FlagSet) map[string]string) *cobra.Command {
		var bindings map[string]string
		cmd := &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				for key, flag := range bindings {
					if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
						return err
					}
				}
				if configFile != "" {
					v.SetConfigFile(configFile)
					if err := v.ReadInConfig(); err != nil {
						return NewConfigurationError("fail to read config file %s: %s", configFile, err)
					}
				}
				props, err := LoadProperties(v, pairs)
				if err != nil {
					return err
				}
				if err := SetLogLevel(props.GetDefault(PropertyLogLevel, PropertyLogLevelDefault)); err != nil {
					return err
				}
				Debugf("%s properties: %v", name, props)
				return Commands[name](props).Main(cmd.Context())
			},
		}
		if defineFlags != nil {
			bindings = defineFlags(cmd.Flags())
		}
		return cmd
	}

	rootCmd.AddCommand(newSubCommand("run", "Run a throughput benchmark", func(f *pflag.FlagSet) map[string]string {
		f.StringP("workload", "b", PropertyWorkloadDefault, "workload kind")
		f.StringP("queries", "q", "", "query file of fieldIndex|text lines")
		f.StringP("appends", "a", "", "append file of v0|v1|... lines")
		f.StringP("threads", "n", PropertyThreadCountDefault, "number of workers")
		return map[string]string{
			PropertyWorkload:    "workload",
			PropertyQueryFile:   "queries",
			PropertyAppendFile:  "appends",
			PropertyThreadCount: "threads",
		}
	}))
	rootCmd.AddCommand(newSubCommand("latency", "Sample the latency of single operations", func(f *pflag.FlagSet) map[string]string {
		f.StringP("mode", "b", PropertyLatencyModeDefault, "search or get")
		f.StringP("queries", "q", "", "query file of fieldIndex|text lines")
		return map[string]string{
			PropertyLatencyMode: "mode",
			PropertyQueryFile:   "queries",
		}
	}))
	rootCmd.AddCommand(newSubCommand("load", "Load a data file into the index", func(f *pflag.FlagSet) map[string]string {
		f.StringP("data", "d", "", "data file of v0|v1|... lines")
		f.StringP("seed", "s", PropertyLoadSeedDefault, "first document id, -1 to start at the current count")
		f.String("batch", PropertyLoadBatchSizeDefault, "documents per bulk request")
		return map[string]string{
			PropertyLoadDataFile:  "data",
			PropertyLoadSeed:      "seed",
			PropertyLoadBatchSize: "batch",
		}
	}))
	rootCmd.AddCommand(newSubCommand("write", "Measure the write throughput of concurrent writers", func(f *pflag.FlagSet) map[string]string {
		f.StringP("data", "d", "", "data file of v0|v1|... lines")
		f.StringP("seed", "s", PropertyLoadSeedDefault, "first document id, -1 to start at the current count")
		f.StringP("threads", "n", PropertyWriteThreadCountDefault, "number of writers")
		f.String("timebound", PropertyWriteTimeBoundDefault, "stop the writers after this long, 0 for no bound")
		return map[string]string{
			PropertyLoadDataFile:     "data",
			PropertyLoadSeed:         "seed",
			PropertyWriteThreadCount: "threads",
			PropertyWriteTimeBound:   "timebound",
		}
	}))
	rootCmd.AddCommand(newSubCommand("shell", "Interactive mode", nil))
	return rootCmd
}

// Execute runs the command line and returns the exit status.
func Execute(ctx context.Context, args []string) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}
	if IsUsageError(err) || strings.HasPrefix(err.Error(), "unknown command") {
		EPrintf("Error: %s", err)
		if cmd == nil {
			cmd = rootCmd
		}
		EPrintf("%s", cmd.UsageString())
		return ExitUsage
	}
	Errorf("%+v", err)
	return ExitFailure
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
