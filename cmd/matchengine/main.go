// Command matchengine wires the two worker lanes, their engines and
// queues, a Prometheus metrics endpoint, and a demonstration NATS egress
// sink into a single process using go.uber.org/fx.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tembolo1284/matching-engine-c-sub001/internal/config"
	"github.com/tembolo1284/matching-engine-c-sub001/internal/egress"
	"github.com/tembolo1284/matching-engine-c-sub001/internal/matching"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			prometheus.NewRegistry,
			newLanes,
			newEgressSink,
		),
		fx.Invoke(
			registerMetricsHandler,
			startWorkers,
			startEgressPump,
		),
	)
	app.Run()
}

func newConfig() (*config.Config, error) {
	return config.Load("")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return config.NewLogger(cfg)
}

// lane bundles one worker partition's engine, queues, and worker, plus
// the metrics registered against it.
type lane struct {
	worker  *matching.Worker
	in      *matching.InputQueue
	out     *matching.OutputQueue
	metrics *matching.Metrics
}

// lanes holds both worker partitions plus the single shared shutdown
// flag they all observe.
type lanes struct {
	lane     [matching.NumLanes]*lane
	shutdown *int32
}

func newLanes(cfg *config.Config, reg *prometheus.Registry, log *zap.Logger) *lanes {
	shutdown := new(int32)
	ls := &lanes{shutdown: shutdown}

	for i := 0; i < matching.NumLanes; i++ {
		engineCfg := matching.EngineConfig{
			PoolCapacity:        cfg.Engine.PoolCapacity,
			MaxSymbols:          cfg.Engine.MaxSymbols,
			BookIndexCapacity:   cfg.Engine.PriceLevelCapacity * 2,
			PriceLevelCapacity:  cfg.Engine.PriceLevelCapacity,
			OrderKeyMapCapacity: cfg.Engine.OrderKeyMapCapacity,
		}
		engine := matching.NewEngine(engineCfg, log.Named(fmt.Sprintf("lane-%d", i)))
		in := matching.NewInputQueue(cfg.Queues.InputCapacity)
		out := matching.NewOutputQueue(cfg.Queues.OutputCapacity)
		workerCfg := matching.WorkerConfig{
			BatchSize:     cfg.Worker.BatchSize,
			IdleThreshold: cfg.Worker.IdleThreshold,
		}
		worker := matching.NewWorker(i, engine, in, out, shutdown, workerCfg, log.Named(fmt.Sprintf("worker-%d", i)))
		metrics := matching.NewMetrics(reg, fmt.Sprintf("matchengine_lane%d", i))
		worker.SetMetrics(metrics)

		ls.lane[i] = &lane{worker: worker, in: in, out: out, metrics: metrics}
	}

	return ls
}

func newEgressSink(cfg *config.Config, log *zap.Logger) (egress.Sink, error) {
	return egress.NewNATSSink(cfg.Egress.NATSURL, cfg.Egress.Subject, log.Named("egress"))
}

func registerMetricsHandler(lc fx.Lifecycle, reg *prometheus.Registry, cfg *config.Config, log *zap.Logger) {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), Handler: handler}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}

func startWorkers(lc fx.Lifecycle, ls *lanes, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, l := range ls.lane {
				l := l
				go l.worker.Run()
			}
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("signalling workers to stop")
			atomic.StoreInt32(ls.shutdown, 1)
			return nil
		},
	})
}

// startEgressPump drains each lane's output queue round-robin and hands
// envelopes to the sink, preserving per-worker FIFO: at most one
// envelope per round-robin step.
func startEgressPump(lc fx.Lifecycle, ls *lanes, sink egress.Sink, log *zap.Logger) {
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				for {
					select {
					case <-stop:
						return
					default:
					}
					idle := true
					for _, l := range ls.lane {
						if env, ok := l.out.Dequeue(); ok {
							idle = false
							if err := sink.Publish(context.Background(), env); err != nil {
								log.Warn("egress publish failed", zap.Error(err))
							}
						}
					}
					if idle && atomic.LoadInt32(ls.shutdown) != 0 {
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return sink.Close()
		},
	})
}
