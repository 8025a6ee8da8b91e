package routes

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raffle-service/controller"
)

type Options struct {
	AllowOrigins string
	BodyLimit    int
}

func InitRoutes(ctl *controller.Controller, opts Options) *fiber.App {
	if opts.BodyLimit == 0 {
		opts.BodyLimit = 20 * 1024 * 1024
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}
	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		// draws block until every notification has been attempted
		ReadTimeout:  time.Minute * 20,
		WriteTimeout: time.Minute * 20,
		BodyLimit:    opts.BodyLimit,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowOrigins,
		AllowHeaders:     "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With, " + controller.UserIdHeader,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowCredentials: false,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1/")
	v1.All("/service-status", ctl.ServiceStatusCheck)
	v1.Get("/", ctl.Index)

	v1.Post("/lotteries", ctl.CreateLottery)
	v1.Get("/lotteries/open", ctl.ExploreLotteries)
	v1.Get("/my-lotteries", ctl.GetMyLotteries)
	v1.Get("/lottery/:code", ctl.GetLotteryByCode)
	v1.Get("/lottery/:code/window", ctl.GetParticipationWindow)
	v1.Post("/lotteries/:id/tickets", ctl.ReserveNumbers)
	v1.Get("/lotteries/:id/tickets", ctl.ListTickets)
	v1.Post("/lotteries/:id/tickets/cancel", ctl.CancelSelection)
	v1.Get("/lotteries/:id/export", ctl.ExportTickets)

	v1.Post("/tickets/:id/verify", ctl.VerifyTicket)
	v1.Post("/tickets/:id/reject", ctl.RejectTicket)
	v1.Post("/upload-receipt", ctl.UploadReceipt)
	v1.Get("/files/receipts/*", ctl.GetReceiptFile)

	v1.Post("/perform-draw", ctl.PerformDraw)
	return app
}
