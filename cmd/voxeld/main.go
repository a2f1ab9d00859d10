package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации логирования: %v", err)
	}
	if cfg.Logging.ToFile {
		if err := logging.InitDefaultLogger("voxeld"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
		defer logging.GetLoggerManager().CloseAll()
	}
	logging.SetLevel(level)

	logging.Info("🧊 Запуск voxeld...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg, nil)
	if err != nil {
		logging.Error("❌ Ошибка сборки движка: %v", err)
		os.Exit(1)
	}

	if err := engine.Bootstrap(ctx); err != nil {
		logging.Error("❌ Ошибка генерации стартовой области: %v", err)
		_ = engine.Close(context.Background())
		os.Exit(1)
	}

	port := cfg.Server.GetAPIPort()
	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 Отладочный API: http://localhost:%d", port)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", port)
	logging.Info("💡 Пример правки: curl -X POST http://localhost:%d/api/voxels -d '{\"x\":0,\"y\":8,\"z\":0,\"material\":\"stone\"}'", port)

	runErr := engine.Run(ctx)
	if runErr != nil {
		logging.Error("❌ Отладочный API остановился с ошибкой: %v", runErr)
	} else {
		logging.Info("📡 Получен сигнал завершения, остановка...")
	}

	if err := engine.Close(context.Background()); err != nil {
		logging.Error("❌ Ошибка остановки: %v", err)
	}
	logging.Info("👋 voxeld остановлен")

	if runErr != nil {
		os.Exit(1)
	}
}
