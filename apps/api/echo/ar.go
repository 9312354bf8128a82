package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/user"
)

const uploadField = "file"

type arApi struct {
	svc      ar.Service
	users    user.Service
	validate *validator.Validate
}

func registerARAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc ar.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := arApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	ag := g.Group("/ar", jwt)
	ag.POST("/assets", api.upload)
	ag.GET("/assets", api.queryAssets)
	ag.GET("/assets/:id", api.retrieveAsset)
	ag.GET("/assets/:id/file", api.download)
	ag.DELETE("/assets/:id", api.destroyAsset)
	ag.POST("/assets/:id/remove-background", api.removeBackground)
	ag.POST("/remove-background", api.uploadAndRemoveBackground)

	ag.GET("/scenes", api.queryScenes)
	ag.POST("/scenes", api.createScene)
	ag.DELETE("/scenes/:id", api.destroyScene)
}

// store saves the multipart file of the request as an asset.
func (api *arApi) store(ctx echo.Context, actor user.User) (ar.Asset, error) {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return ar.Asset{}, core.NewFieldError(uploadField, "a file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return ar.Asset{}, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	a, err := api.svc.Upload(ctx.Request().Context(), actor, fh.Filename, f)
	return a, errors.Wrap(err, "uploading asset")
}

func (api *arApi) upload(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.store(ctx, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

// uploadAndRemoveBackground stores the uploaded image then its transparent PNG version.
func (api *arApi) uploadAndRemoveBackground(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.store(ctx, ctxUsr)
	if err != nil {
		return err
	}
	processed, err := api.svc.RemoveBackground(ctx.Request().Context(), ctxUsr, a.ID)
	if err != nil {
		return errors.Wrap(err, "removing background")
	}
	return ctx.JSON(http.StatusCreated, processed)
}

func (api *arApi) removeBackground(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	processed, err := api.svc.RemoveBackground(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "removing background")
	}
	return ctx.JSON(http.StatusCreated, processed)
}

func (api *arApi) queryAssets(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := ar.QueryFilter{Kind: core.CleanString(ctx.QueryParam("kind"), true /* lower */)}
	assets, err := api.svc.QueryAssets(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying assets")
	}
	if assets == nil {
		assets = []ar.Asset{}
	}
	return ctx.JSON(http.StatusOK, assets)
}

func (api *arApi) retrieveAsset(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.GetAsset(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding asset")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *arApi) download(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, rc, err := api.svc.OpenAsset(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening asset")
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", a.Name))
	return ctx.Stream(http.StatusOK, a.ContentType, rc)
}

func (api *arApi) destroyAsset(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteAsset(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting asset")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *arApi) queryScenes(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scenes, err := api.svc.QueryScenes(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying scenes")
	}
	if scenes == nil {
		scenes = []ar.Scene{}
	}
	return ctx.JSON(http.StatusOK, scenes)
}

func (api *arApi) createScene(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ar.NewScene
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScene")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateScene(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating scene")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *arApi) destroyScene(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteScene(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting scene")
	}
	return ctx.NoContent(http.StatusNoContent)
}
