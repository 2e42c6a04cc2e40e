package dig_container

import (
	"context"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/ismis/apps/api/echo"
	"github.com/trezcool/ismis/assets"
	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
	emailsvc "github.com/trezcool/ismis/services/email"
	"github.com/trezcool/ismis/services/exrate"
	"github.com/trezcool/ismis/services/gateway"
	"github.com/trezcool/ismis/services/identity"
	logsvc "github.com/trezcool/ismis/services/logger"
	"github.com/trezcool/ismis/storage"
)

const rateCachePrefix = "ismis:rates:"

type (
	// StorageLoggerParam is the logger of the storage layer.
	StorageLoggerParam struct {
		dig.In
		Logger core.Logger `name:"storageLogger"`
	}

	paymentParams struct {
		dig.In
		Repo     payment.Repository
		Records  student.Repository
		Gateway  payment.Gateway
		Rates    payment.RateProvider
		MailSvc  core.EmailService
		Validate *validator.Validate
		Logger   core.Logger
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    user.Service
		StudentSvc student.Service
		PaymentSvc payment.Service
		Translator ut.Translator
	}
)

func newZap(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZap(conf)
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorageLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("storage"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam StorageLoggerParam) (*storage.Repositories, error) {
	repos, err := storage.Open(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Error("opening storage", err)
		return nil, errors.Wrapf(err, "opening %s storage", conf.StorageEngine)
	}
	loggerParam.Logger.Info("storage opened", map[string]interface{}{"engine": conf.StorageEngine})
	return repos, nil
}

func splitRepositories(repos *storage.Repositories) (user.Repository, user.CredentialRepository, student.Repository, payment.Repository) {
	return repos.Users, repos.Credentials, repos.Students, repos.Payments
}

func newIdentityProvider(conf *core.Config, creds user.CredentialRepository) (user.IdentityProvider, error) {
	return identity.New(context.Background(), conf, creds)
}

// newRateProvider caches the rates in Redis when an address is configured, in memory otherwise.
func newRateProvider(conf *core.Config, logger core.Logger) payment.RateProvider {
	var cache exrate.Cache = exrate.NewMemoryCache()
	if conf.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.Address, Password: conf.Redis.Password})
		cache = exrate.NewRedisCache(client, rateCachePrefix)
	}
	return exrate.NewClient(conf, cache, logger)
}

// newGateway returns a nil Gateway when no Stripe key is configured; payments then fail with
// payment.ErrGatewayNotConfigured.
func newGateway(conf *core.Config, logger core.Logger) (payment.Gateway, error) {
	gw, err := gateway.NewStripe(conf.StripeSecretKey, nil)
	switch {
	case err == nil:
		return gw, nil
	case errors.Cause(err) == payment.ErrGatewayNotConfigured:
		logger.Warn("stripe secret key not set, payments are disabled")
		return nil, nil
	default:
		return nil, err
	}
}

func newEmailTemplates(conf *core.Config) (*core.EmailTemplates, error) {
	return core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf)
}

func newEmailService(tmpls *core.EmailTemplates, conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(tmpls, conf, logger)
	}
	return emailsvc.NewSendgridService(tmpls, conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	return validate
}

func newStudentEnroller(svc student.Service) user.StudentEnroller {
	return svc
}

func newPaymentService(p paymentParams) payment.Service {
	return payment.NewService(payment.Deps{
		Repo:     p.Repo,
		Records:  p.Records,
		Gateway:  p.Gateway,
		Rates:    p.Rates,
		MailSvc:  p.MailSvc,
		Validate: p.Validate,
		Logger:   p.Logger,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		StudentSvc: p.StudentSvc,
		PaymentSvc: p.PaymentSvc,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newStorageLogger, dig.Name("storageLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(splitRepositories))
	must(c.Provide(newIdentityProvider))
	must(c.Provide(newRateProvider))
	must(c.Provide(newGateway))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(student.NewService))
	must(c.Provide(newStudentEnroller))
	must(c.Provide(user.NewService))
	must(c.Provide(newPaymentService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
