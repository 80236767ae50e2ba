// main.go - The entry point and server setup.

package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/configs"
	"github.com/bosocmputer/bank_guarantee_ai/internal/ai"
	"github.com/bosocmputer/bank_guarantee_ai/internal/api"
	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/bosocmputer/bank_guarantee_ai/internal/docx"
	"github.com/bosocmputer/bank_guarantee_ai/internal/extraction"
	"github.com/bosocmputer/bank_guarantee_ai/internal/logger"
	"github.com/bosocmputer/bank_guarantee_ai/internal/processor"
	"github.com/bosocmputer/bank_guarantee_ai/internal/ratelimit"
	"github.com/bosocmputer/bank_guarantee_ai/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Step 0: Load configuration from environment variables
	if err := configs.LoadConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(configs.LOG_LEVEL, configs.DEVELOPMENT); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Get()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Step 1: Model provider and invoker
	provider, err := ai.NewProvider(ctx, configs.MODEL_PROVIDER, ai.ProviderKeys{
		Gemini:  configs.GEMINI_API_KEY,
		Mistral: configs.MISTRAL_API_KEY,
	}, common.Pricing{
		InputPerMillion:  configs.INPUT_PRICE_PER_MILLION,
		OutputPerMillion: configs.OUTPUT_PRICE_PER_MILLION,
	})
	if err != nil {
		zlog.Fatal("Failed to create model provider", zap.Error(err))
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}
	invokerSettings := configs.InvokerSettings()
	invoker := ai.NewInvoker(provider, invokerSettings,
		ai.WithLimiter(ratelimit.NewLimiter(configs.RATE_LIMIT_RPM, 1)))

	// Step 2: Page rasterizer
	var rasterizer processor.Rasterizer
	switch configs.RASTERIZER {
	case "poppler":
		rasterizer = processor.NewPopplerRasterizer(configs.RasterSettings(), processor.ExecRunner{})
	default:
		rasterizer = processor.NewFitzRasterizer(configs.RasterSettings())
	}

	// Step 3: Extraction history
	var store storage.ExtractionStore
	if configs.MONGO_URI != "" {
		mongoStore, err := storage.NewMongoStore(ctx, configs.MONGO_URI, configs.MONGO_DB_NAME)
		if err != nil {
			zlog.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		store = mongoStore
	} else {
		zlog.Info("MONGO_URI not set, keeping extraction history in memory")
		store = storage.NewMemoryStore()
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			zlog.Warn("Failed to close store", zap.Error(err))
		}
	}()

	service := extraction.NewService(
		rasterizer,
		invoker,
		store,
		storage.NewResultCache[*extraction.Result](configs.CACHE_TTL),
		extraction.Config{MaxPages: configs.MAX_PAGES, Prepare: configs.PrepareSettings()},
		zlog,
	)

	// Step 4: Letter templates
	layouts, err := docx.DefaultLayouts()
	if err != nil {
		zlog.Fatal("Failed to load template layouts", zap.Error(err))
	}
	filler := docx.NewFiller(configs.TEMPLATE_DIR, layouts)
	converter := docx.NewConverter(processor.ExecRunner{}, configs.SOFFICE_PATH, configs.PDF_CONVERT_TIMEOUT)

	// Step 5: Router
	handler := api.NewHandler(service, filler, converter, store, zlog)
	router := api.NewRouter(handler, configs.ALLOWED_ORIGINS, zlog)

	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    30 * time.Second, // uploads can be several MB
		WriteTimeout:   writeTimeout(invokerSettings),
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zlog.Info("Starting server",
			zap.String("port", configs.PORT),
			zap.String("provider", provider.GetProviderName()),
			zap.Strings("models", configs.Models()),
			zap.String("rasterizer", configs.RASTERIZER),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	zlog.Info("Server exited")
}

// writeTimeout leaves room for the slowest extraction: every model attempt
// timing out, plus rendering and upload handling. 0 means no limit.
func writeTimeout(settings ai.InvokerConfig) time.Duration {
	worst := settings.MaxDuration()
	if worst == 0 {
		return 0
	}
	return worst + 2*time.Minute
}
