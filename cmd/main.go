package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/dagaz/featureflag"
	dagazhttp "github.com/aukilabs/dagaz/http"
	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/dagaz/smoketest"
	dwebsocket "github.com/aukilabs/dagaz/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Dagaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "dagaz_info",
		Help:        "Dagaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"DAGAZ_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"DAGAZ_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"DAGAZ_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"DAGAZ_LOG_INDENT"           help:"Indent logs."`
	CellSize           float32       `cli:""        env:"DAGAZ_CELL_SIZE"            help:"The edge length of a grid cell."`
	WorldExtent        float32       `cli:""        env:"DAGAZ_WORLD_EXTENT"         help:"Objects are kept within this distance from the origin on every axis."`
	ObjectCount        int           `cli:""        env:"DAGAZ_OBJECT_COUNT"         help:"The number of objects spawned at start."`
	MaxSpeed           float32       `cli:",hidden" env:"DAGAZ_MAX_SPEED"            help:"The maximum speed of spawned objects in units per second."`
	MaxHalfExtent      float32       `cli:",hidden" env:"DAGAZ_MAX_HALF_EXTENT"      help:"The maximum half extent of spawned objects."`
	MaxResults         int           `cli:",hidden" env:"DAGAZ_MAX_RESULTS"          help:"The maximum number of objects returned by a query. 0 means no limit."`
	FrameDuration      time.Duration `cli:",hidden" env:"DAGAZ_FRAME_DURATION"       help:"The duration of a scene frame."`
	CompactEvery       uint64        `cli:",hidden" env:"DAGAZ_COMPACT_EVERY"        help:"The number of frames between each reclaim of empty cells."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"DAGAZ_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	CameraRateLimit    float64       `cli:",hidden" env:"DAGAZ_CAMERA_RATE_LIMIT"    help:"The number of camera updates accepted per second and per client."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"DAGAZ_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	AdminToken         string        `cli:",hidden" env:"DAGAZ_ADMIN_TOKEN"          help:"The bearer token required by admin debug endpoints."`
	StreamToken        string        `cli:",hidden" env:"DAGAZ_STREAM_TOKEN"         help:"The bearer token required by stream clients."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"DAGAZ_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"DAGAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"DAGAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"DAGAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"DAGAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		CellSize:           128,
		WorldExtent:        4096,
		ObjectCount:        10000,
		MaxSpeed:           20,
		MaxHalfExtent:      8,
		MaxResults:         10000,
		FrameDuration:      time.Millisecond * 15,
		CompactEvery:       600,
		ClientIdleTimeout:  time.Minute * 5,
		CameraRateLimit:    30,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Dagaz server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "dagaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)

	scene := models.NewScene(models.SceneConfig{
		CellSize:      conf.CellSize,
		WorldExtent:   conf.WorldExtent,
		FrameDuration: conf.FrameDuration,
		CompactEvery:  conf.CompactEvery,
		FeatureFlags:  flags,
	})
	defer scene.Close()

	scene.SpawnRandom(rand.New(rand.NewSource(time.Now().UnixNano())),
		conf.ObjectCount,
		conf.MaxSpeed,
		conf.MaxHalfExtent,
	)
	go scene.StartDispatchFrames()

	queries := dagazhttp.QueryHandler{
		Scene:      scene,
		MaxResults: conf.MaxResults,
	}

	var service http.ServeMux
	service.Handle("/health", dagazhttp.HandleWithCORS(http.HandlerFunc(dagazhttp.HandleHealthCheck)))
	service.Handle("/version", dagazhttp.HandleWithCORS(http.HandlerFunc(dagazhttp.HandleVersion(version))))
	service.Handle("POST /query/box", dagazhttp.HandleWithCORS(http.HandlerFunc(queries.HandleBox)))
	service.Handle("POST /query/sphere", dagazhttp.HandleWithCORS(http.HandlerFunc(queries.HandleSphere)))
	service.Handle("POST /query/frustum", dagazhttp.HandleWithCORS(http.HandlerFunc(queries.HandleFrustum)))

	service.Handle("/stream", websocket.Server{
		Handshake: dagazhttp.VerifyAuthToken(conf.StreamToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h dwebsocket.Handler = &dwebsocket.StreamHandler{
				Scene:             scene,
				ClientIdleTimeout: conf.ClientIdleTimeout,
				CameraRateLimit:   conf.CameraRateLimit,
				FeatureFlags:      flags,
			}
			h = dwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = dwebsocket.HandlerWithMetrics(h, conf.Addr)
			defer h.Close()

			dwebsocket.Handle(ctx, conn, h)
		},
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	debug := dagazhttp.DebugHandler{Scene: scene}
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return dagazhttp.VerifyAuthTokenHandler(conf.AdminToken, h)
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", dagazhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", guard(pprof.Index))
	admin.HandleFunc("/debug/pprof/cmdline", guard(pprof.Cmdline))
	admin.HandleFunc("/debug/pprof/profile", guard(pprof.Profile))
	admin.HandleFunc("/debug/pprof/symbol", guard(pprof.Symbol))
	admin.HandleFunc("/debug/pprof/trace", guard(pprof.Trace))
	admin.Handle("/debug/pprof/goroutine", guard(pprof.Handler("goroutine").ServeHTTP))
	admin.Handle("/debug/pprof/heap", guard(pprof.Handler("heap").ServeHTTP))
	admin.Handle("/debug/pprof/threadcreate", guard(pprof.Handler("threadcreate").ServeHTTP))
	admin.Handle("/debug/pprof/block", guard(pprof.Handler("block").ServeHTTP))
	admin.HandleFunc("GET /debug/cells", guard(debug.HandleCells))
	admin.HandleFunc("GET /debug/cells/{id}", guard(debug.HandleObjectCells))
	admin.HandleFunc("GET /debug/info", guard(debug.HandleInfo))
	admin.HandleFunc("POST /smoke-test", guard(smoketest.HandleSmokeTest(ctx, scene, smoketest.Options{})))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("cell_size", conf.CellSize).
		WithTag("object_count", conf.ObjectCount).
		WithTag("feature_flags", flags.Names()).
		Info("starting dagaz server")

	dagazhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			dagazhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: metrics.HTTPHandler(&admin,
			dagazhttp.MetricsPathFormatter)},
	)
}

func validateConfig(conf config) error {
	if !(conf.CellSize > 0) {
		return errors.New("cell size must be positive").
			WithTag("cell_size", conf.CellSize)
	}

	if float64(conf.WorldExtent)/float64(conf.CellSize) >= dagaz.MaxCellIndex {
		return errors.New("world extent spans more cells than the grid supports").
			WithTag("world_extent", conf.WorldExtent).
			WithTag("cell_size", conf.CellSize).
			WithTag("max_cell_index", dagaz.MaxCellIndex)
	}

	if conf.WorldExtent <= conf.MaxHalfExtent {
		return errors.New("world extent must be greater than the maximum half extent").
			WithTag("world_extent", conf.WorldExtent).
			WithTag("max_half_extent", conf.MaxHalfExtent)
	}

	if conf.ObjectCount < 0 {
		return errors.New("object count must not be negative").
			WithTag("object_count", conf.ObjectCount)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.CameraRateLimit <= 0 {
		return errors.New("camera rate limit must be positive").
			WithTag("camera_rate_limit", conf.CameraRateLimit)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}
	return nil
}
