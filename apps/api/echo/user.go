package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/user"
)

var errNoPermsToSetRole = "only administrators can register staff accounts"

type userApi struct {
	svc     user.Service
	nowFunc func() time.Time
}

func registerUserAPI(g *echo.Group, auth echo.MiddlewareFunc, svc user.Service) {
	api := userApi{svc: svc, nowFunc: time.Now}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)
	ug.POST("/register", api.register, optionalAuthMiddleware(svc))

	// authed endpoints
	ag := ug.Group("", auth)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.queryRoles)
	ag.GET("", api.query, requireRoles(user.RoleAdmin))
}

// Handlers

// register is public for students; staff accounts are registered by administrators.
func (api *userApi) register(ctx echo.Context) error {
	var data user.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Registration")
	}

	if role := user.Role(core.CleanString(string(data.Role), true /* lower */)); role != user.RoleStudent && role.Valid() {
		ctxProf, err := getContextProfile(ctx)
		if err != nil || ctxProf.Role != user.RoleAdmin {
			return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
		}
	}

	prof, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, prof)
}

func (api *userApi) login(ctx echo.Context) error {
	var data user.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	token, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	return ctx.JSON(http.StatusOK, MeResponse{Profile: prof, Greeting: user.Greeting(api.nowFunc())})
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	profiles, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if profiles == nil {
		profiles = []user.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		user.Profile
		Greeting string `json:"greeting"`
	}
)
