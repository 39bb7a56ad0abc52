package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/clock"
	"github.com/annel0/tickworld/internal/config"
	"github.com/annel0/tickworld/internal/lease"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/metrics"
	"github.com/annel0/tickworld/internal/observability"
	"github.com/annel0/tickworld/internal/observation"
	"github.com/annel0/tickworld/internal/rpcapi"
	"github.com/annel0/tickworld/internal/tickscheduler"
	"github.com/annel0/tickworld/internal/viewerws"
	"github.com/annel0/tickworld/internal/worldstate"
)

func main() {
	defer logging.CloseLogger()

	logging.Info("🎮 Запуск tick-сервера...")

	// === TELEMETRY ===
	shutdownTel, err := observability.InitTelemetry(context.Background(), "tickworld")
	if err != nil {
		logging.Warn("Не удалось инициализировать OpenTelemetry: %v", err)
	}

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load("")
	if err != nil {
		logging.Warn("Не удалось загрузить config: %v", err)
		cfg = &config.Config{}
	}

	// === МИР И ИНДЕКС ЧАНКОВ ===
	world := worldstate.NewWorld(cfg.World.GetWidth(), cfg.World.GetHeight())
	chunkIdx := chunkindex.New(world, cfg.World.GetChunkSize())
	chunkIdx.InitializeFromWorld()

	realClock := clock.Real{}

	// === АРЕНДА (LEASE) ===
	leases := lease.NewManager(realClock, cfg.Lease.GetDurationMS())

	// === ПЛАНИРОВЩИК ТИКОВ ===
	scheduler := tickscheduler.NewScheduler(world, chunkIdx, realClock, tickscheduler.Config{
		TickDurationMS:   cfg.Tick.GetDurationMS(),
		IntentDeadlineMS: cfg.Tick.GetIntentDeadlineMS(),
		RegenRate:        cfg.Actions.GetRegenRate(),
	})

	// === НАБЛЮДЕНИЕ И ЗРИТЕЛИ ===
	obsService := observation.NewService(world, leases, cfg.Observation.GetTileRadius())
	hub := observation.NewHub(world, chunkIdx)

	// === ЛОГИЧЕСКИЙ RPC СЛОЙ ===
	// Транспорт намеренно не реализован здесь (см. DESIGN.md §rpcapi);
	// rpcSvc готов к привязке к gRPC-стабам отдельным биндингом.
	rpcSvc := rpcapi.NewService(world, leases, scheduler, obsService)

	// === МЕТРИКИ ===
	metricsExporter := metrics.NewExporter()
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsExporter.StartHTTP(metricsAddr)

	// === WEBSOCKET-КАНАЛ ЗРИТЕЛЕЙ ===
	viewerAddr := fmt.Sprintf(":%d", cfg.Server.GetViewerPort())
	viewerMux := http.NewServeMux()
	viewerMux.Handle("/viewer", viewerws.NewHandler(hub))
	viewerServer := &http.Server{Addr: viewerAddr, Handler: viewerMux}
	go func() {
		logging.Info("👁️  Канал зрителей слушает %s", viewerAddr)
		if err := viewerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("ошибка сервера зрителей: %v", err)
		}
	}()

	// === ПОДКЛЮЧЕНИЕ ХУКОВ ПЛАНИРОВЩИКА ===
	scheduler.OnTickStart(func(tick int64) {
		deadlineMS := realClock.NowMS() + cfg.Tick.GetIntentDeadlineMS()
		obsService.Broadcast(tick, deadlineMS)
		rpcSvc.BroadcastTickOpen(rpcapi.TickEvent{
			TickID:           tick,
			TickStartMS:      realClock.NowMS(),
			IntentDeadlineMS: cfg.Tick.GetIntentDeadlineMS(),
			TickDurationMS:   cfg.Tick.GetDurationMS(),
			WorldVersion:     tick,
		})
		hub.BroadcastTickBoundary("tick_started", tick)
		metricsExporter.SetViewersConnected(hub.ViewerCount())
		metricsExporter.SetObserversSubscribed(obsService.SubscriberCount())
	})

	scheduler.OnTickComplete(func(result tickscheduler.TickResult) {
		expired := leases.CleanupExpired()
		metricsExporter.AddLeasesExpired(expired)
		hub.BroadcastTickBoundary("tick_completed", result.Tick)
	})

	// === ЦИКЛ ТИКОВ ===
	stopTicking := make(chan struct{})
	go runTickLoop(scheduler, rpcSvc, cfg, metricsExporter, stopTicking)

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   📊 Метрики: http://localhost%s/metrics", metricsAddr)
	logging.Info("   👁️  Зрители: ws://localhost%s/viewer", viewerAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	close(stopTicking)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := viewerServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("ошибка остановки сервера зрителей: %v", err)
	}

	if shutdownTel != nil {
		_ = shutdownTel(context.Background())
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// runTickLoop drives OPEN->CLOSED->INTEGRATING->BROADCAST->IDLE forever at
// the configured cadence, until stop is closed.
func runTickLoop(scheduler *tickscheduler.Scheduler, rpcSvc *rpcapi.Service, cfg *config.Config, m *metrics.Exporter, stop <-chan struct{}) {
	tickDuration := time.Duration(cfg.Tick.GetDurationMS()) * time.Millisecond
	intentDeadline := time.Duration(cfg.Tick.GetIntentDeadlineMS()) * time.Millisecond

	for {
		select {
		case <-stop:
			return
		default:
		}

		cycleStart := time.Now()
		ctx := scheduler.Open()
		rpcSvc.SetActiveTickContext(ctx)

		select {
		case <-time.After(intentDeadline):
		case <-stop:
			return
		}

		result := scheduler.RunCycle()
		elapsed := time.Since(cycleStart)
		m.ObserveTick(elapsed.Seconds(), result.RejectedLateCount)

		if remaining := tickDuration - elapsed; remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-stop:
				return
			}
		}
	}
}
