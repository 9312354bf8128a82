package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/user"
)

var errCustNotFoundInCtx = errors.New("customer object not found in echo.Context")

type customerApi struct {
	svc      customer.Service
	users    user.Service
	validate *validator.Validate
}

func registerCustomerAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc customer.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := customerApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	cg := g.Group("/customers", jwt)
	managers := roleMiddleware(user.RoleAdmin, user.RoleBusiness)
	cg.POST("", api.create, managers)
	cg.GET("", api.query)

	dg := cg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, managers)
	dg.DELETE("", api.destroy, managers)
}

func (api *customerApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data customer.NewCustomer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCustomer")
	}
	if !ctxUsr.IsAdmin() {
		data.BusinessID = ctxUsr.BusinessID
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating customer")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *customerApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(customer.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []customer.Customer{})
	}
	filter.Clean()
	if !ctxUsr.IsAdmin() {
		filter.BusinessID = ctxUsr.BusinessID
	}

	customers, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying customers")
	}
	if customers == nil {
		customers = []customer.Customer{}
	}
	return ctx.JSON(http.StatusOK, customers)
}

func (api *customerApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get("object").(customer.Customer)
	if !ok {
		return errors.Wrap(errCustNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *customerApi) update(ctx echo.Context) error {
	c, ok := ctx.Get("object").(customer.Customer)
	if !ok {
		return errors.Wrap(errCustNotFoundInCtx, "retrieving object from context")
	}

	var data customer.UpdateCustomer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCustomer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating customer")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *customerApi) destroy(ctx echo.Context) error {
	c, ok := ctx.Get("object").(customer.Customer)
	if !ok {
		return errors.Wrap(errCustNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting customer")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// objectMiddleware loads the customer of the `id` path param; customers of other businesses are not found.
func (api *customerApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding customer by ID")
		}
		if !ctxUsr.IsAdmin() && c.BusinessID != ctxUsr.BusinessID {
			return errHttpNotFound
		}
		ctx.Set("object", c)
		return next(ctx)
	}
}
