package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/pushcore/notifier/internal/api/handlers/notification"
	"github.com/pushcore/notifier/internal/api/handlers/schedule"
	"github.com/pushcore/notifier/internal/middlewares"
)

func New(notifHandler *notification.Handler, scheduleHandler *schedule.Handler) *ginext.Engine {
	e := ginext.New("")
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	notifications := e.Group("/api/notifications")
	{
		notifications.POST("/", notifHandler.Create)
		notifications.GET("/", notifHandler.GetAll)
		notifications.GET("/:id", notifHandler.Get)
		notifications.GET("/:id/status", notifHandler.GetStatus)
		notifications.DELETE("/:id", notifHandler.Delete)
	}

	schedules := e.Group("/api/schedules")
	{
		schedules.PUT("/:id", scheduleHandler.Upsert)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.DELETE("/:id", scheduleHandler.Delete)
	}

	return e
}
