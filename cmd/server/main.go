package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/exitlane/api/internal/cache"
	"github.com/forgo/exitlane/api/internal/catalog"
	"github.com/forgo/exitlane/api/internal/config"
	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/email"
	"github.com/forgo/exitlane/api/internal/handler"
	"github.com/forgo/exitlane/api/internal/jobs"
	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/payments"
	"github.com/forgo/exitlane/api/internal/repository"
	"github.com/forgo/exitlane/api/internal/service"
	"github.com/forgo/exitlane/api/internal/storage"
	"github.com/forgo/exitlane/api/migrations"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
		TLS:       cfg.Database.TLS,
		Observer:  metrics.ObserveQuery,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	if err := migrations.Apply(ctx, db); err != nil {
		slog.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cat, err := catalog.Default()
	if err != nil {
		slog.Error("failed to load catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Stripe.Currency != "" {
		cat.Currency = cfg.Stripe.Currency
	}
	cat.SetPlanPriceIDs(map[string]string{
		"buyer_monthly": cfg.Stripe.MonthlyPriceID,
		"buyer_annual":  cfg.Stripe.AnnualPriceID,
	})

	// Outbound integrations fall back to a disabled variant when unconfigured
	var gateway payments.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payments.NewStripeGateway(payments.StripeConfig{
			SecretKey:       cfg.Stripe.SecretKey,
			WebhookSecret:   cfg.Stripe.WebhookSecret,
			StatementSuffix: cfg.Stripe.StatementSuffix,
		})
	} else {
		slog.Warn("stripe is not configured, payments are disabled")
	}

	var sender email.Sender = email.LogSender{Logger: logger}
	if cfg.Email.APIKey != "" {
		httpSender, err := email.NewHTTPSender(email.HTTPConfig{
			APIURL:    cfg.Email.APIURL,
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			Timeout:   cfg.Email.Timeout,
		})
		if err != nil {
			slog.Error("failed to initialize email sender", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sender = httpSender
	}
	mailer, err := email.NewMailer(sender, logger)
	if err != nil {
		slog.Error("failed to initialize mailer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var avatars storage.Store
	bucket, err := storage.NewBucketClient(storage.Config{
		BaseURL: cfg.Storage.URL,
		APIKey:  cfg.Storage.APIKey,
		Bucket:  cfg.Storage.AvatarBucket,
	})
	switch {
	case err == nil:
		avatars = bucket
	case errors.Is(err, storage.ErrNotConfigured):
		slog.Warn("object storage is not configured, avatar uploads are disabled")
	default:
		slog.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var views service.ViewCounter = cache.NewMemoryCounter()
	if cfg.Redis.Addr != "" {
		redisCounter, err := cache.NewRedisCounter(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = redisCounter.Close() }()
		views = redisCounter
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	productRepo := repository.NewProductRepository(db)
	ndaRepo := repository.NewNDARepository(db)
	bidRepo := repository.NewBidRepository(db)
	escrowRepo := repository.NewEscrowRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)

	// Initialize services
	eventHub := service.NewEventHub()

	notifier := service.NewNotifier(service.NotifierConfig{
		Mailer:      mailer,
		UserRepo:    userRepo,
		ProfileRepo: profileRepo,
		BaseURL:     cfg.Frontend.BaseURL,
		Async:       true,
		Timeout:     cfg.Email.Timeout,
	})

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService: jwtService,
		TokenRepo:  tokenRepo,
	})

	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     userRepo,
		ProfileRepo:  profileRepo,
		TokenService: tokenService,
		Notifier:     notifier,
	})

	profileService := service.NewProfileService(service.ProfileServiceConfig{
		ProfileRepo:   profileRepo,
		Avatars:       avatars,
		MaxAvatarSize: cfg.Storage.MaxAvatarSize,
	})

	listingService := service.NewListingService(service.ListingServiceConfig{
		ProductRepo: productRepo,
		ProfileRepo: profileRepo,
		NDARepo:     ndaRepo,
		Views:       views,
	})

	escrowService := service.NewEscrowService(service.EscrowServiceConfig{
		EscrowRepo:  escrowRepo,
		BidRepo:     bidRepo,
		ProductRepo: productRepo,
		Gateway:     gateway,
		Events:      eventHub,
		Notifier:    notifier,
	})

	bidService := service.NewBidService(service.BidServiceConfig{
		BidRepo:     bidRepo,
		ProductRepo: productRepo,
		EscrowRepo:  escrowRepo,
		Escrow:      escrowService,
		Gateway:     gateway,
		Catalog:     cat,
	})
	listingService.SetBidReleaser(bidService)

	checkoutService := service.NewCheckoutService(service.CheckoutServiceConfig{
		ProductRepo:  productRepo,
		PurchaseRepo: purchaseRepo,
		ProfileRepo:  profileRepo,
		UserRepo:     userRepo,
		Listings:     listingService,
		Gateway:      gateway,
		Catalog:      cat,
		FrontendURL:  cfg.Frontend.BaseURL,
	})

	webhookService := service.NewWebhookService(gateway, escrowService, checkoutService)

	conversationService := service.NewConversationService(service.ConversationServiceConfig{
		ConversationRepo: conversationRepo,
		ProductRepo:      productRepo,
		ProfileRepo:      profileRepo,
		Events:           eventHub,
	})

	feedbackService := service.NewFeedbackService(feedbackRepo, escrowRepo)
	valuationService := service.NewValuationService(leadRepo)

	matchingService := service.NewMatchingService(service.MatchingServiceConfig{
		PrefsRepo:   prefsRepo,
		LeadRepo:    leadRepo,
		Listings:    productRepo,
		ProfileRepo: profileRepo,
	})

	progressService := service.NewProgressService(service.ProgressServiceConfig{
		PrefsRepo: prefsRepo,
		Leads:     leadRepo,
		Valuation: valuationService,
		UserRepo:  userRepo,
	})

	moderationService := service.NewModerationService(service.ModerationServiceConfig{
		ProductRepo: productRepo,
		EscrowRepo:  escrowRepo,
		ProfileRepo: profileRepo,
		Leads:       leadRepo,
		Notifier:    notifier,
		Events:      eventHub,
	})

	auctionFinalizer := service.NewAuctionFinalizer(productRepo, bidRepo, bidService, notifier)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService, cfg.Storage.MaxAvatarSize)
	listingHandler := handler.NewListingHandler(listingService)
	bidHandler := handler.NewBidHandler(bidService)
	escrowHandler := handler.NewEscrowHandler(escrowService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	valuationHandler := handler.NewValuationHandler(valuationService)
	matchingHandler := handler.NewMatchingHandler(matchingService)
	progressHandler := handler.NewProgressHandler(progressService)
	adminHandler := handler.NewAdminHandler(moderationService)
	eventsHandler := handler.NewEventsHandler(eventHub)

	// Initialize middleware
	authMiddleware := middleware.Auth(tokenService)
	optionalAuth := middleware.OptionalAuth(tokenService)
	adminMiddleware := func(h http.Handler) http.Handler {
		return authMiddleware(middleware.AdminAuth(h))
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.Server.RateLimit,
		Window: time.Minute,
		Burst:  cfg.Server.RateBurst,
	})
	defer rateLimiter.Stop()

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{
		TTL: 24 * time.Hour,
	})
	defer idempotencyStore.Stop()

	// Setup routes
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /ready", handler.Ready(db))
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth endpoints
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /v1/auth/refresh", authHandler.Refresh)
	mux.Handle("POST /v1/auth/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /v1/auth/me", authMiddleware(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /v1/auth/password", authMiddleware(http.HandlerFunc(authHandler.ChangePassword)))

	// Profile endpoints
	mux.Handle("GET /v1/profile", authMiddleware(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PATCH /v1/profile", authMiddleware(http.HandlerFunc(profileHandler.Update)))
	mux.Handle("GET /v1/profile/username-check", authMiddleware(http.HandlerFunc(profileHandler.CheckUsername)))
	mux.Handle("PUT /v1/profile/avatar", authMiddleware(http.HandlerFunc(profileHandler.UploadAvatar)))
	mux.Handle("DELETE /v1/profile/avatar", authMiddleware(http.HandlerFunc(profileHandler.RemoveAvatar)))
	mux.HandleFunc("GET /v1/profiles/{username}", profileHandler.GetPublic)

	// Listing endpoints
	mux.Handle("GET /v1/listings", optionalAuth(http.HandlerFunc(listingHandler.Browse)))
	mux.Handle("POST /v1/listings", authMiddleware(http.HandlerFunc(listingHandler.Create)))
	mux.Handle("GET /v1/listings/mine", authMiddleware(http.HandlerFunc(listingHandler.ListMine)))
	mux.Handle("GET /v1/listings/{listingId}", optionalAuth(http.HandlerFunc(listingHandler.Get)))
	mux.Handle("PATCH /v1/listings/{listingId}", authMiddleware(http.HandlerFunc(listingHandler.Update)))
	mux.Handle("POST /v1/listings/{listingId}/submit", authMiddleware(http.HandlerFunc(listingHandler.Submit)))
	mux.Handle("POST /v1/listings/{listingId}/withdraw", authMiddleware(http.HandlerFunc(listingHandler.Withdraw)))
	mux.Handle("POST /v1/listings/{listingId}/nda", authMiddleware(http.HandlerFunc(listingHandler.SignNDA)))

	// Bid endpoints
	mux.Handle("POST /v1/listings/{listingId}/bids", authMiddleware(http.HandlerFunc(bidHandler.Place)))
	mux.Handle("GET /v1/listings/{listingId}/bids", authMiddleware(http.HandlerFunc(bidHandler.ListForListing)))
	mux.Handle("GET /v1/bids/mine", authMiddleware(http.HandlerFunc(bidHandler.ListMine)))
	mux.Handle("POST /v1/bids/{bidId}/accept", authMiddleware(http.HandlerFunc(bidHandler.Accept)))
	mux.Handle("POST /v1/bids/{bidId}/reject", authMiddleware(http.HandlerFunc(bidHandler.Reject)))
	mux.Handle("POST /v1/bids/{bidId}/withdraw", authMiddleware(http.HandlerFunc(bidHandler.Withdraw)))

	// Escrow endpoints
	mux.Handle("GET /v1/escrow", authMiddleware(http.HandlerFunc(escrowHandler.ListMine)))
	mux.Handle("GET /v1/escrow/{escrowId}", authMiddleware(http.HandlerFunc(escrowHandler.Get)))
	mux.Handle("POST /v1/escrow/{escrowId}/verify", authMiddleware(http.HandlerFunc(escrowHandler.Verify)))
	mux.Handle("POST /v1/escrow/{escrowId}/delivered", authMiddleware(http.HandlerFunc(escrowHandler.Delivered)))
	mux.Handle("POST /v1/escrow/{escrowId}/confirm", authMiddleware(http.HandlerFunc(escrowHandler.Confirm)))
	mux.Handle("POST /v1/escrow/{escrowId}/cancel", authMiddleware(http.HandlerFunc(escrowHandler.Cancel)))

	// Feedback endpoints
	mux.Handle("POST /v1/escrow/{escrowId}/feedback", authMiddleware(http.HandlerFunc(feedbackHandler.Submit)))
	mux.Handle("GET /v1/feedback/prompts", authMiddleware(http.HandlerFunc(feedbackHandler.Prompts)))
	mux.HandleFunc("GET /v1/users/{userId}/feedback", feedbackHandler.ForUser)

	// Package and subscription checkout
	mux.HandleFunc("GET /v1/packages", checkoutHandler.ListPackages)
	mux.Handle("POST /v1/packages/checkout", authMiddleware(http.HandlerFunc(checkoutHandler.CreatePackageCheckout)))
	mux.Handle("POST /v1/packages/verify", authMiddleware(http.HandlerFunc(checkoutHandler.VerifyPackage)))
	mux.HandleFunc("GET /v1/payments/return", checkoutHandler.PaymentReturn)
	mux.HandleFunc("GET /v1/subscriptions/plans", checkoutHandler.ListPlans)
	mux.Handle("POST /v1/subscriptions/checkout", authMiddleware(http.HandlerFunc(checkoutHandler.CreateSubscriptionCheckout)))
	mux.Handle("POST /v1/subscriptions/verify", authMiddleware(http.HandlerFunc(checkoutHandler.VerifySubscription)))
	mux.Handle("GET /v1/subscriptions/status", authMiddleware(http.HandlerFunc(checkoutHandler.SubscriptionStatus)))

	// Payment processor webhooks authenticate by signature, not bearer token
	mux.HandleFunc("POST /v1/webhooks/stripe", webhookHandler.Stripe)

	// Conversation endpoints
	mux.Handle("GET /v1/conversations", authMiddleware(http.HandlerFunc(conversationHandler.List)))
	mux.Handle("POST /v1/conversations", authMiddleware(http.HandlerFunc(conversationHandler.Start)))
	mux.Handle("GET /v1/conversations/{conversationId}/messages", authMiddleware(http.HandlerFunc(conversationHandler.ListMessages)))
	mux.Handle("POST /v1/conversations/{conversationId}/messages", authMiddleware(http.HandlerFunc(conversationHandler.Send)))
	mux.Handle("POST /v1/conversations/{conversationId}/read", authMiddleware(http.HandlerFunc(conversationHandler.MarkRead)))

	// Valuation and matching lead capture work without an account
	mux.HandleFunc("POST /v1/valuation/calculate", valuationHandler.Calculate)
	mux.Handle("POST /v1/valuation/leads", optionalAuth(http.HandlerFunc(valuationHandler.SubmitLead)))
	mux.Handle("GET /v1/valuation/leads/mine", authMiddleware(http.HandlerFunc(valuationHandler.ListMine)))
	mux.Handle("POST /v1/matching/leads", optionalAuth(http.HandlerFunc(matchingHandler.SubmitLead)))
	mux.Handle("GET /v1/preferences", authMiddleware(http.HandlerFunc(matchingHandler.GetPreferences)))
	mux.Handle("PUT /v1/preferences", authMiddleware(http.HandlerFunc(matchingHandler.SavePreferences)))
	mux.Handle("GET /v1/matches", authMiddleware(http.HandlerFunc(matchingHandler.Matches)))
	mux.Handle("POST /v1/progress/merge", authMiddleware(http.HandlerFunc(progressHandler.Merge)))

	// SSE stream
	mux.Handle("GET /v1/events/stream", authMiddleware(http.HandlerFunc(eventsHandler.Stream)))

	// Admin moderation endpoints - requires admin role
	mux.Handle("GET /v1/admin/listings/pending", adminMiddleware(http.HandlerFunc(adminHandler.PendingListings)))
	mux.Handle("POST /v1/admin/listings/{listingId}/moderate", adminMiddleware(http.HandlerFunc(adminHandler.Moderate)))
	mux.Handle("POST /v1/admin/listings/{listingId}/feature", adminMiddleware(http.HandlerFunc(adminHandler.Feature)))
	mux.Handle("GET /v1/admin/stats", adminMiddleware(http.HandlerFunc(adminHandler.Stats)))

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		metrics.Instrument,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rateLimiter),
		middleware.Idempotency(idempotencyStore),
		middleware.Compress,
	)

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(jobs.DefaultRunTimeout)
		if err := jobs.Register(scheduler, cfg.Jobs, jobs.Services{
			Auctions:      auctionFinalizer,
			Subscriptions: checkoutService,
			Views:         listingService,
			Tokens:        tokenService,
		}); err != nil {
			slog.Error("failed to register jobs", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("background jobs started", slog.Int("jobs", len(scheduler.Jobs())))
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close SSE streams first so Shutdown is not held open by them
	eventHub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	// Flush the view counts buffered since the last sweep
	if n, err := listingService.FlushViews(shutdownCtx); err != nil {
		slog.Error("failed to flush views", slog.String("error", err.Error()))
	} else if n > 0 {
		slog.Info("flushed views", slog.Int("listings", n))
	}

	notifier.Wait()

	slog.Info("server exited")
}
