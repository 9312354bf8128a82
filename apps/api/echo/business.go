package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/user"
)

var errBizNotFoundInCtx = errors.New("business object not found in echo.Context")

type businessApi struct {
	svc      business.Service
	users    user.Service
	validate *validator.Validate
}

func registerBusinessAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc business.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := businessApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	bg := g.Group("/businesses", jwt)
	admin := roleMiddleware(user.RoleAdmin)
	bg.POST("", api.create, admin)
	bg.GET("", api.query, admin)

	dg := bg.Group("/:id", memberOrAdminMiddleware(api.svc, api.users))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleMiddleware(user.RoleAdmin, user.RoleBusiness))
	dg.DELETE("", api.destroy, admin)
}

func (api *businessApi) create(ctx echo.Context) error {
	var data business.NewBusiness
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBusiness")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating business")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *businessApi) query(ctx echo.Context) error {
	filter := new(business.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []business.Business{})
	}
	filter.Clean()

	businesses, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying businesses")
	}
	if businesses == nil {
		businesses = []business.Business{}
	}
	return ctx.JSON(http.StatusOK, businesses)
}

func (api *businessApi) retrieve(ctx echo.Context) error {
	b, ok := ctx.Get("object").(business.Business)
	if !ok {
		return errors.Wrap(errBizNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *businessApi) update(ctx echo.Context) error {
	b, ok := ctx.Get("object").(business.Business)
	if !ok {
		return errors.Wrap(errBizNotFoundInCtx, "retrieving object from context")
	}

	var data business.UpdateBusiness
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBusiness")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// owner, features & subscription are managed by admins
	if data.ChangesPlan() && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	b, err = api.svc.Update(ctx.Request().Context(), b.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating business")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *businessApi) destroy(ctx echo.Context) error {
	b, ok := ctx.Get("object").(business.Business)
	if !ok {
		return errors.Wrap(errBizNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), b.ID); err != nil {
		return errors.Wrap(err, "deleting business")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// memberOrAdminMiddleware loads the business of the `id` path param for admins and its own users.
func memberOrAdminMiddleware(svc business.Service, users user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			id := ctx.Param("id")
			if !(ctxUsr.IsAdmin() || (ctxUsr.BusinessID != "" && ctxUsr.BusinessID == id)) {
				return errHttpNotFound
			}
			b, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding business by ID")
			}
			ctx.Set("object", b)
			return next(ctx)
		}
	}
}
