package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/joho/godotenv"
    "go.uber.org/zap"

    "github.com/zaqqye/firmsheet/internal/config"
    "github.com/zaqqye/firmsheet/internal/logger"
    "github.com/zaqqye/firmsheet/internal/metrics"
    "github.com/zaqqye/firmsheet/internal/routes"
    "github.com/zaqqye/firmsheet/internal/store"
    "github.com/zaqqye/firmsheet/internal/ws"
)

func main() {
    // Load .env (non-fatal if missing in production)
    _ = godotenv.Load()

    cfg := config.Load()

    zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
    if err != nil {
        log.Fatalf("logger init failed: %v", err)
    }
    defer zl.Sync()

    st := store.New(cfg.DataFile,
        store.WithSheet(cfg.SheetName),
        store.WithSerializedSaves(cfg.SerializeSaves),
        store.WithLogger(zl),
    )
    if _, err := st.Init(); err != nil {
        zl.Fatal("workbook init failed", zap.String("path", cfg.DataFile), zap.Error(err))
    }

    hub := ws.NewFirmHub(zl)
    go hub.Run()
    defer hub.Stop()

    if cfg.GinMode != "" {
        gin.SetMode(cfg.GinMode)
    }
    r := gin.New()
    r.Use(gin.Recovery())
    routes.Register(r, routes.Deps{
        Cfg:     cfg,
        Store:   st,
        Hub:     hub,
        Metrics: metrics.New(),
        Log:     zl,
    })

    port := cfg.Port
    if port == "" {
        port = "8080"
    }
    srv := &http.Server{
        Addr:    ":" + port,
        Handler: r,
    }

    go func() {
        zl.Info("server listening", zap.String("addr", srv.Addr), zap.String("data_file", cfg.DataFile))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            zl.Error("server exited with error", zap.Error(err))
            os.Exit(1)
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
    <-stop

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        zl.Warn("shutdown", zap.Error(err))
    }
}
