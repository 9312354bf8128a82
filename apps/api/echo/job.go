package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/user"
)

type jobApi struct {
	svc      job.Service
	users    user.Service
	validate *validator.Validate
}

func registerJobAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc job.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := jobApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	g.GET("/dashboard/stats", api.stats, jwt)

	jg := g.Group("/jobs", jwt)
	managers := roleMiddleware(user.RoleAdmin, user.RoleBusiness)
	jg.POST("", api.create, managers)
	jg.GET("", api.query)
	jg.GET("/calendar", api.calendar)

	jg.GET("/:id", api.retrieve)
	jg.PUT("/:id", api.update)
	jg.DELETE("/:id", api.destroy)
	jg.POST("/:id/assign", api.assign, managers)

	// workflow
	jg.POST("/:id/start", api.start)
	jg.POST("/:id/steps/:step", api.completeStep)
	jg.POST("/:id/tbd", api.markTBD)
	jg.POST("/:id/products", api.addProduct)
	jg.PUT("/:id/products/:productID", api.setProductQuantity)
	jg.POST("/:id/checklist/:itemID/toggle", api.toggleChecklistItem)
	jg.GET("/:id/quotation", api.quotation)
	jg.GET("/:id/quotation/pdf", api.quotationPDF)
	jg.POST("/:id/quotation/send", api.sendQuotation)
}

// JobResponse is a job along with its workflow progress.
type JobResponse struct {
	job.Job
	CurrentStep string   `json:"current_step"`
	Steps       []string `json:"steps"`
	Progress    float64  `json:"progress"`
}

func newJobResponse(j job.Job) JobResponse {
	return JobResponse{
		Job:         j,
		CurrentStep: job.CurrentStep(j),
		Steps:       job.Steps(j.JobType),
		Progress:    job.Progress(j),
	}
}

type (
	TBDRequest struct {
		Quotation float64 `json:"quotation" validate:"gte=0"`
	}

	QuantityRequest struct {
		Quantity int `json:"quantity" validate:"gte=0"`
	}

	SendQuotationRequest struct {
		Cc []string `json:"cc" validate:"omitempty,dive,email"`
	}
)

func (api *jobApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data job.NewJob
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJob")
	}
	if ctxUsr.IsBusiness() && data.BusinessID == "" {
		data.BusinessID = ctxUsr.BusinessID
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating job")
	}
	return ctx.JSON(http.StatusCreated, newJobResponse(j))
}

func (api *jobApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(job.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []JobResponse{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	jobs, err := api.svc.Query(ctx.Request().Context(), ctxUsr, *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying jobs")
	}
	res := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		res = append(res, newJobResponse(j))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *jobApi) calendar(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	days, err := api.svc.Calendar(ctx.Request().Context(), ctxUsr, ctx.QueryParam("from"), ctx.QueryParam("to"))
	if err != nil {
		return errors.Wrap(err, "building calendar")
	}
	return ctx.JSON(http.StatusOK, days)
}

func (api *jobApi) stats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *jobApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	j, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding job by ID")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) update(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data job.UpdateJob
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateJob")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.Update(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating job")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *jobApi) assign(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data job.AssignJob
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignJob")
	}
	data.EmployeeID = core.CleanString(data.EmployeeID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	j, err := api.svc.Assign(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.EmployeeID)
	if err != nil {
		return errors.Wrap(err, "assigning job")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) start(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	j, err := api.svc.Start(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting job")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) completeStep(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data job.StepData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StepData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	step := ctx.Param("step")
	j, err := api.svc.CompleteStep(ctx.Request().Context(), ctxUsr, ctx.Param("id"), step, data)
	if err != nil {
		return errors.Wrapf(err, "completing step %q", step)
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) markTBD(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data TBDRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TBDRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	j, err := api.svc.MarkTBD(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Quotation)
	if err != nil {
		return errors.Wrap(err, "marking job TBD")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) addProduct(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data job.NewSelectedProduct
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSelectedProduct")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.AddProduct(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding product")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

// setProductQuantity sets the quantity of a selected product; 0 removes it.
func (api *jobApi) setProductQuantity(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data QuantityRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuantityRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	j, err := api.svc.SetProductQuantity(ctx.Request().Context(), ctxUsr, ctx.Param("id"), ctx.Param("productID"), data.Quantity)
	if err != nil {
		return errors.Wrap(err, "setting product quantity")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) toggleChecklistItem(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	j, err := api.svc.ToggleChecklistItem(ctx.Request().Context(), ctxUsr, ctx.Param("id"), ctx.Param("itemID"))
	if err != nil {
		return errors.Wrap(err, "toggling checklist item")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}

func (api *jobApi) quotation(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := api.svc.Quotation(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building quotation")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *jobApi) quotationPDF(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	j, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding job by ID")
	}
	pdf, err := api.svc.QuotationPDF(ctx.Request().Context(), ctxUsr, j.ID)
	if err != nil {
		return errors.Wrap(err, "rendering quotation")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "quotation-"+j.CustomerReference+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", pdf)
}

func (api *jobApi) sendQuotation(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data SendQuotationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendQuotationRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	j, err := api.svc.SendQuotation(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Cc...)
	if err != nil {
		return errors.Wrap(err, "sending quotation")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(j))
}
