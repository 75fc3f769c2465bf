package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/middleware"
	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth       *AuthHandler
	Students   *PersonHandler
	Teachers   *PersonHandler
	Staff      *PersonHandler
	Fees       *FeeHandler
	Schedules  *ScheduleHandler
	Grades     *GradeHandler
	Events     *ClassEventHandler
	Timetables *TimetableHandler
	Notices    *NoticeHandler
	Leaves     *LeaveHandler
	Attendance *AttendanceHandler
	Messages   *MessageHandler
	Dashboard  *DashboardHandler
	Exports    *ExportHandler
	Streams    *StreamRegistry
}

var (
	adminOnly  = middleware.RequireRoles(models.RoleAdmin)
	schoolTeam = middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStaff)
	markers    = middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
)

// Register mounts the API routes on group. Everything except login, password reset and
// signed downloads requires a bearer token.
func Register(group *gin.RouterGroup, h Handlers, auth *service.AuthService) {
	group.POST("/auth/login", h.Auth.Login)
	group.POST("/auth/password-reset", h.Auth.RequestPasswordReset)
	group.POST("/auth/password-reset/confirm", h.Auth.ConfirmPasswordReset)
	group.GET("/exports/:token", h.Exports.Download)

	secured := group.Group("")
	secured.Use(middleware.JWT(auth))

	secured.POST("/auth/register", adminOnly, h.Auth.Register)
	secured.GET("/auth/me", h.Auth.Me)
	secured.PUT("/auth/password", h.Auth.ChangePassword)

	registerPeople(secured.Group("/students"), h.Students)
	registerPeople(secured.Group("/teachers"), h.Teachers)
	registerPeople(secured.Group("/staff"), h.Staff)

	fees := secured.Group("/fees")
	fees.GET("/mine", middleware.RequireRoles(models.RoleStudent), h.Fees.Mine)
	fees.Use(adminOnly)
	fees.GET("", h.Fees.List)
	fees.GET("/stream", h.Fees.Stream)
	fees.POST("/export", h.Exports.FeeReport)
	fees.GET("/:id", h.Fees.Get)
	fees.POST("", h.Fees.Create)
	fees.PUT("/:id", h.Fees.Update)
	fees.POST("/:id/paid", h.Fees.MarkPaid)
	fees.DELETE("/:id", h.Fees.Delete)

	schedules := secured.Group("/schedules")
	schedules.GET("", h.Schedules.List)
	schedules.GET("/stream", h.Schedules.Stream)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.POST("", adminOnly, h.Schedules.Create)
	schedules.PUT("/:id", adminOnly, h.Schedules.Update)
	schedules.DELETE("/:id", adminOnly, h.Schedules.Delete)

	grades := secured.Group("/grades")
	grades.GET("/mine", middleware.RequireRoles(models.RoleStudent), h.Grades.Mine)
	grades.Use(markers)
	grades.GET("/sheet", h.Grades.Sheet)
	grades.POST("/sheet", h.Grades.SaveSheet)
	grades.PUT("/record", h.Grades.Record)
	grades.GET("/stream", h.Grades.Stream)
	grades.DELETE("/:id", h.Grades.Delete)

	events := secured.Group("/class-events")
	events.GET("", h.Events.List)
	events.GET("/upcoming", h.Events.Upcoming)
	events.GET("/mine", markers, h.Events.Mine)
	events.GET("/stream", h.Events.Stream)
	events.GET("/:id", h.Events.Get)
	events.POST("", markers, h.Events.Create)
	events.PUT("/:id", markers, h.Events.Update)
	events.DELETE("/:id", markers, h.Events.Delete)

	timetables := secured.Group("/timetables")
	timetables.GET("", h.Timetables.List)
	timetables.GET("/stream", h.Timetables.Stream)
	timetables.GET("/:id", h.Timetables.Get)
	timetables.POST("", adminOnly, h.Timetables.Create)
	timetables.PUT("/:id", adminOnly, h.Timetables.Update)
	timetables.DELETE("/:id", adminOnly, h.Timetables.Delete)

	notices := secured.Group("/notices")
	notices.GET("", h.Notices.List)
	notices.GET("/stream", h.Notices.Stream)
	notices.POST("", schoolTeam, h.Notices.Create)
	notices.PUT("/:id", schoolTeam, h.Notices.Update)
	notices.POST("/:id/review", adminOnly, h.Notices.Review)
	notices.DELETE("/:id", schoolTeam, h.Notices.Delete)

	leaves := secured.Group("/leaves", schoolTeam)
	leaves.GET("", h.Leaves.List)
	leaves.GET("/stream", h.Leaves.Stream)
	leaves.POST("", h.Leaves.Apply)
	leaves.POST("/:id/review", adminOnly, h.Leaves.Review)
	leaves.DELETE("/:id", h.Leaves.Withdraw)

	attendance := secured.Group("/attendance", markers)
	attendance.POST("", h.Attendance.Mark)
	attendance.GET("", h.Attendance.ForDate)
	attendance.GET("/summary", h.Attendance.Summary)

	messages := secured.Group("/messages")
	messages.GET("/:peer", h.Messages.Conversation)
	messages.POST("/:peer", h.Messages.Send)
	messages.GET("/:peer/stream", h.Messages.Stream)
	messages.POST("/:peer/read/:id", h.Messages.MarkRead)

	secured.GET("/dashboard", adminOnly, h.Dashboard.Summary)
	secured.POST("/exports", adminOnly, h.Exports.Generate)
	secured.DELETE("/streams/:streamId/items/:id", h.Streams.DeleteItem)
}

func registerPeople(group *gin.RouterGroup, h *PersonHandler) {
	group.GET("/me", h.Me)
	group.POST("/:id/photo", middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf), h.UploadPhoto)
	group.GET("", schoolTeam, h.List)
	group.GET("/stream", schoolTeam, h.Stream)
	group.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), string(models.RoleStaff), middleware.RoleSelf), h.Get)
	group.POST("", adminOnly, h.Create)
	group.PUT("/:id", adminOnly, h.Update)
	group.DELETE("/:id", adminOnly, h.Delete)
}
