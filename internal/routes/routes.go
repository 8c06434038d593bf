package routes

import (
    "github.com/gin-gonic/gin"
    "go.uber.org/zap"

    "github.com/zaqqye/firmsheet/internal/config"
    "github.com/zaqqye/firmsheet/internal/controllers"
    "github.com/zaqqye/firmsheet/internal/metrics"
    "github.com/zaqqye/firmsheet/internal/middleware"
    "github.com/zaqqye/firmsheet/internal/ws"
)

type Deps struct {
    Cfg     *config.Config
    Store   controllers.FirmStore
    Hub     *ws.FirmHub
    Metrics *metrics.Metrics
    Log     *zap.Logger
}

func Register(r *gin.Engine, d Deps) {
    log := d.Log
    if log == nil {
        log = zap.NewNop()
    }
    m := d.Metrics
    if m == nil {
        m = metrics.New()
    }

    r.Use(middleware.RequestID(), middleware.RequestLogger(log), middleware.Metrics(m))

    firmCtrl := &controllers.FirmController{
        Store:    d.Store,
        FormFile: d.Cfg.FormFile,
        Metrics:  m,
    }
    if d.Hub != nil {
        firmCtrl.Hub = d.Hub
    }

    // Form
    r.GET("/", firmCtrl.FormPage)
    r.HEAD("/", firmCtrl.FormPage)
    r.POST("/save", firmCtrl.Save)

    // Read side and live updates
    r.GET("/api/v1/firm", firmCtrl.Get)
    r.GET("/ws/firm", ws.FirmHandler(d.Hub))

    // Ops
    r.GET("/healthz", controllers.Health)
    r.GET("/metrics", gin.WrapH(m.Handler()))
}
