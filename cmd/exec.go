package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"hanotex/config"
	"hanotex/handlers"
	_ "hanotex/migrations"
	"hanotex/models"
	"hanotex/monitoring"
	"hanotex/realtime"
	"hanotex/security"
	"hanotex/services"
	"hanotex/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize PubNub (optional; personal notifications are best effort)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("hanotex-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	// Initialize services
	monitor := monitoring.NewMonitor(redisClient)
	hub := realtime.NewHub(cfg.RelaySendBuffer, monitor)
	notifier := realtime.NewNotifier(pn, monitor)

	store := services.NewPBStore(app)
	auctionService := services.NewAuctionService(store, redisClient, cfg)
	bidService := services.NewBidService(store, redisClient, hub, notifier, monitor, cfg)
	autoBidService := services.NewAutoBidService(store)
	sweeper := services.NewSweeper(store, redisClient, hub, notifier, cfg)

	// Initialize handlers
	auctionHandler := handlers.NewAuctionHandler(app, auctionService)
	bidHandler := handlers.NewBidHandler(app, bidService, autoBidService)
	adminHandler := handlers.NewAdminHandler(app, store, hub, redisClient)
	wsHandler := realtime.NewWSHandler(hub, cfg)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.BidRateLimit, cfg.BidRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel)

	setupAuctionHooks(app, redisClient)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveAuctionsToRedis(app, redisClient)
		go sweeper.Run(ctx)

		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort)
		}

		g := e.Router.Group("/api/v1")

		// Auction read model
		g.GET("/auctions/{auctionId}", auctionHandler.GetAuction)
		g.GET("/auctions/{auctionId}/bids", auctionHandler.GetAuctionBids)

		// Realtime relay
		g.GET("/auctions/{auctionId}/live", wsHandler.Serve)

		// Bid submission
		placeBid := g.POST("/auctions/{auctionId}/bids", bidHandler.PlaceBid)
		placeBid.Bind(apis.RequireAuth())
		placeBid.BindFunc(rateLimiter.BidRateLimit())

		// Standing maximum bids
		setAutoBid := g.POST("/auctions/{auctionId}/auto-bid", bidHandler.SetAutoBid)
		setAutoBid.Bind(apis.RequireAuth())
		cancelAutoBid := g.DELETE("/auctions/{auctionId}/auto-bid", bidHandler.CancelAutoBid)
		cancelAutoBid.Bind(apis.RequireAuth())

		// Admin endpoints
		dashboard := g.GET("/admin/auction-dashboard", adminHandler.GetAuctionDashboard)
		dashboard.Bind(apis.RequireSuperuserAuth())
		cancelAuction := g.POST("/admin/auctions/{auctionId}/cancel", adminHandler.CancelAuction)
		cancelAuction.Bind(apis.RequireSuperuserAuth())

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		slog.Info("server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		hub.Close()
		sweeper.Wait()
		return e.Next()
	})

	return app.Start()
}

// setupAuctionHooks keeps collection writes made through the CMS (admin UI
// included) consistent with the auction invariants and the Redis state.
func setupAuctionHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	// Assign defaults before the record is persisted.
	app.OnRecordCreate("auctions").BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetString("status") == "" {
			e.Record.Set("status", string(models.StatusUpcoming))
		}
		if e.Record.GetString("lot_code") == "" {
			if code, err := utils.GenerateCode(4); err == nil {
				e.Record.Set("lot_code", code)
			}
		}
		return e.Next()
	})

	// Status only moves forward, no matter who edits the record.
	app.OnRecordUpdate("auctions").BindFunc(func(e *core.RecordEvent) error {
		from := models.AuctionStatus(e.Record.Original().GetString("status"))
		to := models.AuctionStatus(e.Record.GetString("status"))
		if from != to && !models.CanTransition(from, to) {
			return apis.NewBadRequestError("Status change not allowed", nil)
		}
		return e.Next()
	})

	app.OnRecordCreateRequest("auctions").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		syncAuctionActiveFlag(e.Request.Context(), redisClient, e.Record)
		return nil
	})

	app.OnRecordUpdateRequest("auctions").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		syncAuctionActiveFlag(e.Request.Context(), redisClient, e.Record)
		return nil
	})

	app.OnRecordDeleteRequest("auctions").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := redisClient.SRem(e.Request.Context(), "active_auctions", e.Record.Id).Err(); err != nil {
			slog.Error("failed to remove deleted auction from Redis", "auctionId", e.Record.Id, "error", err)
		}
		return nil
	})
}

func syncAuctionActiveFlag(ctx context.Context, redisClient *redis.Client, record *core.Record) {
	auctionID := record.Id
	if record.GetString("status") == string(models.StatusActive) {
		if err := redisClient.SAdd(ctx, "active_auctions", auctionID).Err(); err != nil {
			slog.Error("failed to add active auction to Redis", "auctionId", auctionID, "error", err)
		}
		return
	}
	if err := redisClient.SRem(ctx, "active_auctions", auctionID).Err(); err != nil {
		slog.Error("failed to remove non-active auction from Redis", "auctionId", auctionID, "error", err)
	}
}

// syncActiveAuctionsToRedis rebuilds the active_auctions set on startup.
func syncActiveAuctionsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM auctions WHERE status = 'active'",
	).All(&records); err != nil {
		slog.Error("fetching active auctions failed", "error", err)
		return
	}

	redisClient.Del(ctx, "active_auctions")

	var auctionIDs []interface{}
	for _, record := range records {
		if id := record["id"].String; id != "" {
			auctionIDs = append(auctionIDs, id)
		}
	}
	if len(auctionIDs) > 0 {
		redisClient.SAdd(ctx, "active_auctions", auctionIDs...)
		slog.Info("synced active auctions to Redis", "count", len(auctionIDs))
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics server listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}

// handleShutdown cancels the background context on SIGINT/SIGTERM.
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
