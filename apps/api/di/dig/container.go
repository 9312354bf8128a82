package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/fieldpro/apps/api/echo"
	"github.com/trezcool/fieldpro/apps/shared"
	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
	emailsvc "github.com/trezcool/fieldpro/services/email"
	logsvc "github.com/trezcool/fieldpro/services/logger"
	"github.com/trezcool/fieldpro/services/reminder"
	"github.com/trezcool/fieldpro/storage"
)

type StorageLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storageLogger"`
}

// Services groups every domain service the API is built with.
type Services struct {
	dig.In

	Users         user.Service
	Businesses    business.Service
	Customers     customer.Service
	Products      product.Service
	Notifications notification.Service
	Jobs          job.Service
	Schedules     schedule.Service
	AR            ar.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorageLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORAGE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam StorageLoggerParam) *storage.Repositories {
	repos, err := storage.Open(context.Background(), conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening storage: %v", err), err)
	}
	return repos
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newUserService(repos *storage.Repositories, mailSvc core.EmailService, conf *core.Config) user.Service {
	return user.NewService(repos.Users, mailSvc, conf)
}

func newBusinessService(repos *storage.Repositories) business.Service {
	return business.NewService(repos.Businesses)
}

func newCustomerService(repos *storage.Repositories) customer.Service {
	return customer.NewService(repos.Customers)
}

func newProductService(repos *storage.Repositories) product.Service {
	return product.NewService(repos.Products)
}

func newNotificationService(repos *storage.Repositories) notification.Service {
	return notification.NewService(repos.Notifications)
}

func newScheduleService(repos *storage.Repositories) schedule.Service {
	return schedule.NewService(repos.Schedules)
}

func newJobService(
	repos *storage.Repositories,
	businesses business.Service,
	customers customer.Service,
	users user.Service,
	products product.Service,
	notifications notification.Service,
	mailSvc core.EmailService,
) job.Service {
	return job.NewService(repos.Jobs, businesses, customers, users, products, notifications, mailSvc)
}

// AR files live next to the local store, whatever the backend.
func newARService(repos *storage.Repositories, conf *core.Config) ar.Service {
	return ar.NewService(repos.AR, filepath.Join(conf.Storage.LocalDir, "ar"))
}

func newScheduler(conf *core.Config, repos *storage.Repositories, notifications notification.Service, logger core.Logger) *reminder.Scheduler {
	return reminder.NewScheduler(conf.Reminders, repos.Jobs, notifications, logger)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	repos *storage.Repositories,
	svc Services,
) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Health: func() echoapi.Health {
			return echoapi.Health{Backend: repos.Backend, Degraded: repos.Degraded()}
		},
		UserSvc:         svc.Users,
		BusinessSvc:     svc.Businesses,
		CustomerSvc:     svc.Customers,
		ProductSvc:      svc.Products,
		NotificationSvc: svc.Notifications,
		JobSvc:          svc.Jobs,
		ScheduleSvc:     svc.Schedules,
		ARSvc:           svc.AR,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorageLogger, dig.Name("storageLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(shared.NewTranslator))
	must(c.Provide(shared.NewValidator))
	must(c.Provide(newUserService))
	must(c.Provide(newBusinessService))
	must(c.Provide(newCustomerService))
	must(c.Provide(newProductService))
	must(c.Provide(newNotificationService))
	must(c.Provide(newScheduleService))
	must(c.Provide(newJobService))
	must(c.Provide(newARService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
