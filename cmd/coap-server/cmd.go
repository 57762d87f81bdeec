package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/GiterLab/coap-engine/engine"
	"github.com/GiterLab/coap-engine/internal/config"
	"github.com/GiterLab/coap-engine/internal/telemetry"
	"github.com/GiterLab/coap-engine/message"
	"github.com/GiterLab/coap-engine/resource"
	"github.com/GiterLab/coap-engine/transaction"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "coap-server",
	Short: "run a CoAP engine bound to a UDP listener",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.New()
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	telemetry.Debug(cfg.Logging.Debug)
	if cfg.Logging.Debug {
		log.SetLevel(log.DebugLevel)
	}

	root := buildRootResource()

	sock := newUDPSocket()
	if err := sock.Open(cfg.Listen.Address); err != nil {
		return err
	}
	defer sock.Close()

	eng := engine.New(sock, root, engine.SystemClock{}, engine.SystemRNG{}, engine.Config{
		TransactionCapacity: cfg.Tables.TransactionCapacity,
		ReliableCapacity:    cfg.Tables.ReliableCapacity,
		ConnectionCapacity:  cfg.Tables.ConnectionCapacity,
		SendBufferSize:      cfg.Tables.SendBufferSize,
		Transmission: transaction.Config{
			AckTimeout:         cfg.Transmission.AckTimeout,
			AckRandomFactor:    cfg.Transmission.AckRandomFactor,
			MaxRetransmissions: cfg.Transmission.MaxRetransmissions,
		},
		Reliable: cfg.Listen.Reliable,
	})

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		eng.SetMetrics(engine.NewMetrics(reg))
		eng.SetTransactionMetrics(transaction.NewMetrics(reg))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runEngineLoop(ctx, eng) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return runMetricsServer(ctx, cfg.Metrics.Address, reg) })
	}

	log.Infof("coap-server listening on %s", cfg.Listen.Address)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runEngineLoop(ctx context.Context, eng *engine.Engine) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		cont, err := eng.Run(50)
		if err != nil {
			return err
		}
		if !cont {
			return errors.New("coap-server: engine socket closed")
		}
	}
}

func runMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildRootResource constructs the default demo resource tree: a
// single /sensors/temp leaf plus the built-in /.well-known/core
// handler, enough to exercise dispatch and the link-format walker
// without requiring an application to wire anything up first.
func buildRootResource() *resource.Node {
	root := resource.NewNode("", "")
	sensors := resource.NewNode("sensors", "")
	resource.Attach(root, sensors)

	temp := resource.NewNode("temp", `;rt="temperature";if="sensor"`)
	resource.Attach(sensors, temp)
	temp.SetHandler(resource.MethodGET, func(req *message.Message, resp *resource.ResponseBuilder, eng resource.Engine) {
		resp.SetCode(message.Content)
		resp.AddOption(message.NewUint(message.ContentFormat, 0)) // text/plain
		resp.SetPayload([]byte("21.5"))
		resp.Serialize()
	})

	resource.AttachWellKnownCore(root)
	return root
}
