package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_opentracing "github.com/grpc-ecosystem/go-grpc-middleware/tracing/opentracing"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/config"
	"github.com/akhenakh/concentratord/gatewaysvc"
	"github.com/akhenakh/concentratord/gw"
	"github.com/akhenakh/concentratord/monitor"
	"github.com/akhenakh/concentratord/sim"
	badgerjournal "github.com/akhenakh/concentratord/storage/badger"
	"github.com/akhenakh/concentratord/timebase"
	"github.com/akhenakh/concentratord/web"
)

const appName = "concentratord"

var (
	version = "no version from LDFLAGS"

	configPath = flag.String("config", "concentratord.toml", "gateway configuration file")

	dbPath     = flag.String("dbPath", "uplinks.db", "uplink journal DB path")
	journalTTL = flag.Duration("journalTTL", 24*time.Hour, "uplink journal retention, 0 to keep forever")

	monitorPeriod  = flag.Duration("monitorPeriod", monitor.DefaultPeriod, "concentrator counter sync period")
	pollInterval   = flag.Duration("pollInterval", 10*time.Millisecond, "concentrator receive polling interval")
	beaconInterval = flag.Duration("beaconInterval", 0, "inject a simulated uplink every interval, 0 to disable")
	beaconDevAddr  = flag.String("beaconDevAddr", "26011bda", "DevAddr of the simulated device")

	logLevel = flag.String("logLevel", "info", "log level: debug, info, warn, error")

	httpMetricsPort = flag.Int("httpMetricsPort", 8888, "http port")
	httpAPIPort     = flag.Int("httpAPIPort", 9201, "http API port")
	grpcPort        = flag.Int("grpcPort", 9200, "gRPC API port")
	healthPort      = flag.Int("healthPort", 6666, "grpc health port")

	httpServer        *http.Server
	grpcHealthServer  *grpc.Server
	grpcServer        *grpc.Server
	httpMetricsServer *http.Server
)

func main() {
	flag.Parse()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.DefaultCaller, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = level.NewFilter(logger, levelOption(*logLevel))

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	level.Info(logger).Log("msg", "Starting app", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to read config", "error", err, "path", *configPath)
		os.Exit(2)
	}

	gatewayID, err := cfg.Gateway.EUI()
	if err != nil {
		level.Error(logger).Log("msg", "invalid gateway config", "error", err)
		os.Exit(2)
	}

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// concentrator and timekeeping
	var fix *timebase.Location
	if loc, ok := cfg.Gateway.StaticLocation(); ok {
		fix = &loc
	}
	conc := sim.New(logger)
	gps := sim.NewGPS(fix)

	tb := timebase.New(gps, timebase.WithLogger(logger))
	tb.Start(cfg.Gateway.ClockMode(logger), cfg.Gateway.TimeZone(logger))

	mon, err := monitor.New(logger, conc, tb, monitor.WithPeriod(*monitorPeriod))
	if err != nil {
		level.Error(logger).Log("msg", "failed to read concentrator counter", "error", err)
		os.Exit(2)
	}

	translator := gw.NewTranslator(logger, tb, gps, conc)

	// Badger
	opts := badger.DefaultOptions(*dbPath)
	opts.Logger = nil
	opts.TableLoadingMode = options.FileIO

	bdb, err := badger.Open(opts)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open DB", "error", err, "path", *dbPath)
		os.Exit(2)
	}
	defer bdb.Close()

	journal := &badgerjournal.Journal{DB: bdb, TTL: *journalTTL}

	s := gatewaysvc.NewServer(logger, gatewayID, translator, conc, gatewaysvc.Config{PollInterval: *pollInterval})
	s.Journal = journal

	// counter sync, a hardware error is fatal
	g.Go(func() error {
		err := mon.Run(ctx)
		var herr *concentrator.HardwareError
		if errors.As(err, &herr) {
			level.Error(logger).Log("msg", "concentrator failure, stopping", "op", herr.Op, "error", herr.Err)
		}
		return err
	})

	// uplinks
	g.Go(func() error {
		return s.Receive(ctx, conc)
	})

	if *beaconInterval > 0 {
		var devAddr lorawan.DevAddr
		if err := devAddr.UnmarshalText([]byte(*beaconDevAddr)); err != nil {
			level.Error(logger).Log("msg", "invalid beacon DevAddr", "error", err)
			os.Exit(2)
		}
		b := &sim.Beacon{
			DevAddr:   devAddr,
			FPort:     1,
			Frequency: 868100000,
			Payload:   []byte(appName),
		}
		if fix != nil {
			b.Payload = sim.LocationPayload(1, *fix)
		}
		g.Go(func() error {
			return conc.RunBeacon(ctx, b, *beaconInterval)
		})
	}

	// gRPC Health Server
	healthServer := health.NewServer()
	g.Go(func() error {
		grpcHealthServer = grpc.NewServer()

		healthpb.RegisterHealthServer(grpcHealthServer, healthServer)

		haddr := fmt.Sprintf(":%d", *healthPort)
		hln, err := net.Listen("tcp", haddr)
		if err != nil {
			level.Error(logger).Log("msg", "gRPC Health server: failed to listen", "error", err)
			os.Exit(2)
		}
		level.Info(logger).Log("msg", fmt.Sprintf("gRPC health server serving at %s", haddr))
		return grpcHealthServer.Serve(hln)
	})

	// web server metrics
	g.Go(func() error {
		httpMetricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpMetricsPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP Metrics server serving at :%d", *httpMetricsPort))

		// Register Prometheus metrics handler.
		http.Handle("/metrics", promhttp.Handler())

		if err := httpMetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	// gRPC Server
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", *grpcPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			level.Error(logger).Log("msg", "gRPC server: failed to listen", "error", err)
			os.Exit(2)
		}

		grpcServer = grpc.NewServer(
			// MaxConnectionAge is just to avoid long connection, to facilitate load balancing
			// MaxConnectionAgeGrace will torn them, default to infinity
			grpc.KeepaliveParams(keepalive.ServerParameters{MaxConnectionAge: 2 * time.Minute}),
			grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
				grpc_opentracing.StreamServerInterceptor(),
				grpc_prometheus.StreamServerInterceptor,
			)),
			grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
				grpc_opentracing.UnaryServerInterceptor(),
				grpc_prometheus.UnaryServerInterceptor,
			)),
		)
		gatewaysvc.RegisterGatewayServer(grpcServer, s)
		grpc_prometheus.Register(grpcServer)
		level.Info(logger).Log("msg", fmt.Sprintf("gRPC server serving at %s", addr))

		healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_SERVING)

		return grpcServer.Serve(ln)
	})

	// web server
	g.Go(func() error {
		ws := web.NewServer(logger, tb, mon, journal, translator, conc)

		httpServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpAPIPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      ws.Handler(),
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP API server serving at :%d", *httpAPIPort))

		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	select {
	case <-interrupt:
		cancel()
		break
	case <-ctx.Done():
		break
	}

	level.Warn(logger).Log("msg", "received shutdown signal")

	healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpMetricsServer != nil {
		_ = httpMetricsServer.Shutdown(shutdownCtx)
	}

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if grpcServer != nil {
		s.Close()
		grpcServer.GracefulStop()
	}

	if grpcHealthServer != nil {
		grpcHealthServer.GracefulStop()
	}

	err = g.Wait()
	if err != nil {
		level.Error(logger).Log("msg", "server returning an error", "error", err)
		bdb.Close()
		os.Exit(2)
	}
}

func levelOption(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
