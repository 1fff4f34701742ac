package handlers

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/omar4917/real-estate-project/internal/auth"
	"github.com/omar4917/real-estate-project/internal/catalog"
	"github.com/omar4917/real-estate-project/internal/config"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/repos"
	"github.com/omar4917/real-estate-project/internal/services"
)

// Infra holds the outward-facing collaborators chosen at startup. Nil
// fields fall back to in-process or live defaults.
type Infra struct {
	Cache      catalog.Cache          // nil: in-process TTL cache
	Events     events.Publisher       // nil: no-op
	Intents    payments.IntentCreator // nil: live Stripe when a key is set
	HTTPClient *http.Client           // wallet transport
}

type Deps struct {
	Auth *services.AuthService

	AuthHandler     *AuthHandler
	BookingHandler  *BookingHandler
	PaymentHandler  *PaymentHandler
	PropertyHandler *PropertyHandler
	CategoryHandler *CategoryHandler
	AdminHandler    *AdminHandler

	Bookings *services.BookingService
	Payments *services.PaymentService
	Catalog  *services.CatalogService
}

func NewDeps(db *sqlx.DB, cfg config.Config, infra Infra) (*Deps, error) {
	if infra.Cache == nil {
		infra.Cache = catalog.NewMemoryCache()
	}
	if infra.Events == nil {
		infra.Events = events.Nop{}
	}

	userRepo := repos.NewUserRepo(db)
	catRepo := repos.NewCategoryRepo(db)
	propRepo := repos.NewPropertyRepo(db)
	payRepo := repos.NewPaymentRepo(db)

	locks := lock.NewKeyed()
	rec := payments.NewReconciler(db, locks, infra.Events)

	card := payments.NewCard(payments.CardConfig{
		SecretKey:        cfg.StripeSecretKey,
		WebhookSecret:    cfg.StripeWebhookSecret,
		Currency:         cfg.StripeCurrency,
		InsecureWebhooks: cfg.InsecureWebhooks,
		Timeout:          cfg.ProviderTimeout,
	}, infra.Intents, payRepo, rec)
	wallet, err := payments.NewWallet(payments.WalletConfig{
		BaseURL:   cfg.BkashBaseURL,
		AppKey:    cfg.BkashAppKey,
		AppSecret: cfg.BkashAppSecret,
		Username:  cfg.BkashUsername,
		Password:  cfg.BkashPassword,
		Currency:  cfg.BkashCurrency,
		Mode:      cfg.BkashMode,
		Timeout:   cfg.ProviderTimeout,
	}, infra.HTTPClient, payRepo, rec)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.JWTExpireMin) * time.Minute
	authSvc := services.NewAuthService(userRepo, auth.NewSigner(cfg.JWTSecret, ttl))
	graph := catalog.NewGraphCache(infra.Cache, catRepo, cfg.CategoryCacheTTL)
	catalogSvc := services.NewCatalogService(db, catRepo, propRepo, graph)
	bookingSvc := services.NewBookingService(db, locks, infra.Events)
	paymentSvc := services.NewPaymentService(db, payments.NewRegistry(card, wallet), locks, infra.Events)

	loc := cfg.Location()
	return &Deps{
		Auth:            authSvc,
		AuthHandler:     &AuthHandler{Auth: authSvc},
		BookingHandler:  &BookingHandler{Bookings: bookingSvc, Loc: loc},
		PaymentHandler:  &PaymentHandler{Payments: paymentSvc},
		PropertyHandler: &PropertyHandler{Catalog: catalogSvc, Bookings: bookingSvc, Loc: loc},
		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		AdminHandler:    &AdminHandler{Payments: paymentSvc},
		Bookings:        bookingSvc,
		Payments:        paymentSvc,
		Catalog:         catalogSvc,
	}, nil
}
