package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/user"
)

type productApi struct {
	svc      product.Service
	users    user.Service
	validate *validator.Validate
}

func registerProductAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc product.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := productApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	pg := g.Group("/products", jwt)
	admin := roleMiddleware(user.RoleAdmin)
	pg.GET("", api.query)
	pg.GET("/categories", api.categories)
	pg.POST("", api.create, admin)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, admin)
	pg.DELETE("/:id", api.destroy, admin)
}

func (api *productApi) create(ctx echo.Context) error {
	var data product.NewProduct
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProduct")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating product")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// query lists the catalog; only admins see inactive products.
func (api *productApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(product.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []product.Product{})
	}
	filter.Clean()
	if claims.Role != user.RoleAdmin {
		active := true
		filter.IsActive = &active
	}

	products, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying products")
	}
	if products == nil {
		products = []product.Product{}
	}
	return ctx.JSON(http.StatusOK, products)
}

func (api *productApi) categories(ctx echo.Context) error {
	categories, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return ctx.JSON(http.StatusOK, categories)
}

func (api *productApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding product by ID")
	}
	if !p.IsActive && claims.Role != user.RoleAdmin {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *productApi) update(ctx echo.Context) error {
	var data product.UpdateProduct
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProduct")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating product")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *productApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting product")
	}
	return ctx.NoContent(http.StatusNoContent)
}
