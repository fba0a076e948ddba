package handler

import (
	"database/sql"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formsapi/docs"
	"formsapi/internal/auth"
	"formsapi/internal/http/middleware"
	"formsapi/internal/service"
)

// Deps are the collaborators the HTTP layer is wired with.
type Deps struct {
	DB       *sql.DB
	Forms    service.FormService
	Users    service.UserService
	Issuer   *auth.Issuer
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	app.Get("/swagger/*", swaggerUI)

	api := app.Group("", middleware.Authenticate(d.Issuer, Unauthorized))

	api.Post("/auth/register", Register(d.Users))
	api.Post("/auth/login", Login(d.Users))

	api.Get("/users", ListUsers(d.Users))
	api.Get("/users/me", Me(d.Users))
	api.Post("/users/me/password", ChangePassword(d.Users))
	api.Get("/users/:id", GetUser(d.Users))
	api.Patch("/users/:id", UpdateUser(d.Users))
	api.Delete("/users/:id", DeleteUser(d.Users))

	api.Get("/forms", ListForms(d.Forms))
	api.Post("/forms", CreateForm(d.Forms))
	api.Get("/forms/:id", GetForm(d.Forms))
	api.Put("/forms/:id", UpdateForm(d.Forms))
	api.Delete("/forms/:id", DeleteForm(d.Forms))
	api.Post("/forms/:id/submit", SubmitForm(d.Forms))
	api.Get("/forms/:id/responses", ListResponses(d.Forms))
	api.Get("/forms/:id/export", ExportResponses(d.Forms))
}

// swaggerUI serves the API docs with the host and scheme the caller used.
func swaggerUI(c *fiber.Ctx) error {
	scheme := c.Protocol()
	if proto := c.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	docs.SwaggerInfo.Host = c.Get("Host")
	docs.SwaggerInfo.Schemes = []string{scheme}

	return swagger.HandlerDefault(c)
}
