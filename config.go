package esbench

const (
	// BasicDB
	ConfigBasicDBVerbose            = "basicdb.verbose"
	ConfigBasicDBVerboseDefault     = "false"
	ConfigSimulateDelay             = "basicdb.simulatedelay"
	ConfigSimulateDelayDefault      = "0"
	ConfigRandomizeDelay            = "basicdb.randomizedelay"
	ConfigRandomizeDelayDefault     = "true"
	ConfigBasicDBRecordCount        = "basicdb.recordcount"
	ConfigBasicDBRecordCountDefault = "1000"
	ConfigBasicDBFieldCount         = "basicdb.fieldcount"
	ConfigBasicDBFieldCountDefault  = "10"
	ConfigBasicDBHits               = "basicdb.hits"
	ConfigBasicDBHitsDefault        = "10"

	// Client
	// The database binding to be used.
	PropertyDB        = "db"
	PropertyDBDefault = "elasticsearch"
	// The name of the index (or table) to run operations against.
	PropertyIndexName        = "index"
	PropertyIndexNameDefault = "bench"
	// The document type passed along with point lookups and appends.
	PropertyDocType        = "doctype"
	PropertyDocTypeDefault = "data"
	// The workload kind to run. One of get, search, get-append, search-append
	// and get-search.
	PropertyWorkload        = "workload"
	PropertyWorkloadDefault = "search"
	// Newline-delimited `fieldIndex|queryText` lines used to build searches.
	PropertyQueryFile = "queryfile"
	// Newline-delimited `|`-separated documents used for appends.
	PropertyAppendFile = "appendfile"
	// The number of worker goroutines to run.
	PropertyThreadCount        = "threadcount"
	PropertyThreadCountDefault = "1"
	// Phase durations. Either Go durations ("90s") or plain seconds ("90").
	PropertyWarmupTime          = "warmuptime"
	PropertyWarmupTimeDefault   = "60s"
	PropertyMeasureTime         = "measuretime"
	PropertyMeasureTimeDefault  = "120s"
	PropertyCooldownTime        = "cooldowntime"
	PropertyCooldownTimeDefault = "60s"
	// Upper bound of the number of descriptors sampled into one sequence.
	PropertyMaxSequenceLength        = "maxsequencelength"
	PropertyMaxSequenceLengthDefault = "100000"
	// Result size cap of searches issued by workers.
	PropertySearchSize        = "search.size"
	PropertySearchSizeDefault = "10000"
	// Seed of the per-worker samplers. 0 seeds from the clock.
	PropertySeed        = "seed"
	PropertySeedDefault = "0"
	// The file receiving one `workerId\tthroughput` line per worker.
	PropertyResultFile        = "resultfile"
	PropertyResultFileDefault = "thput"
	// Address to serve prometheus metrics on during a run. Empty disables.
	PropertyMetricsAddr = "metrics.addr"
	// Log level: verbose, debug, info, warn, error or quiet.
	PropertyLogLevel        = "log.level"
	PropertyLogLevelDefault = "info"

	// Latency sampler
	PropertyLatencyMode              = "latency.mode"
	PropertyLatencyModeDefault       = "search"
	PropertyLatencySearchSize        = "latency.search.size"
	PropertyLatencySearchSizeDefault = "100000"
	// If set to the path of a file, latency records are written there
	// instead of stdout.
	PropertyLatencyOutput = "latency.output"

	// Loader
	PropertyLoadDataFile                = "load.datafile"
	PropertyLoadSeed                    = "load.seed"
	PropertyLoadSeedDefault             = "-1"
	PropertyLoadProgressInterval        = "load.progressinterval"
	PropertyLoadProgressIntervalDefault = "100000"
	// Documents sent per bulk request.
	PropertyLoadBatchSize        = "load.batchsize"
	PropertyLoadBatchSizeDefault = "100"

	// Write throughput benchmark
	PropertyWriteThreadCount        = "load.threadcount"
	PropertyWriteThreadCountDefault = "1"
	// How long writers run. 0 lets them run until the data is exhausted.
	PropertyWriteTimeBound        = "load.timebound"
	PropertyWriteTimeBoundDefault = "0"
	// Receives a `<unix millis> <documents>` line every
	// load.reportinterval documents.
	PropertyWriteProgressFile        = "load.progressfile"
	PropertyWriteProgressFileDefault = "record_progress"
	PropertyWriteReportInterval        = "load.reportinterval"
	PropertyWriteReportIntervalDefault = "10000"
	// Receives one `writerId\tthroughput` line per writer.
	PropertyWriteResultFile        = "load.resultfile"
	PropertyWriteResultFileDefault = "write_throughput"

	// measurement
	// The exporter class to be used.
	PropertyExporter        = "measurement.exporter"
	PropertyExporterDefault = "TextMeasurementExporter"
	// If set to the path of a file, measurements are exported there instead
	// of stdout.
	PropertyExportFile = "measurement.exportfile"
	// The name of the property for deciding what percentile values to output.
	PropertyPercentiles = "hdrhistogram.percentiles"
	// The default value of `PropertyPercentiles`
	PropertyPercentilesDefault = "95,99"
	// The highest trackable latency in microseconds.
	PropertyHdrHistogramMax        = "hdrhistogram.max"
	PropertyHdrHistogramMaxDefault = "600000000"
	// The number of significant value digits.
	PropertyHdrHistogramSig        = "hdrhistogram.sig"
	PropertyHdrHistogramSigDefault = "3"
)
