// Command proxy runs the translating reverse proxy: Anthropic Messages API
// in, Google Cloud Code code-assist API out.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/config"
	"github.com/awsl-project/antigravity-relay/internal/cooldown"
	"github.com/awsl-project/antigravity-relay/internal/dispatch"
	"github.com/awsl-project/antigravity-relay/internal/event"
	"github.com/awsl-project/antigravity-relay/internal/logging"
	"github.com/awsl-project/antigravity-relay/internal/repository/gormdb"
	"github.com/awsl-project/antigravity-relay/internal/server"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

var log = logging.New("Main")

func main() {
	cfg := config.Load()
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))

	store := account.NewStore(cfg.AccountsFile)
	credentials := account.NewCredentials()
	discoveryClient := &http.Client{Timeout: 30 * time.Second}

	var manager *account.Manager
	discover := func(ctx context.Context, email string) (string, error) {
		token, err := manager.GetTokenForAccount(ctx, email)
		if err != nil {
			return "", err
		}
		return account.DiscoverProject(ctx, discoveryClient, token)
	}

	manager, err := account.NewManagerWithMaxWait(store, credentials, discover, cfg.MaxWaitBeforeErrorMs)
	if err != nil {
		log.Errorf("failed to initialise account manager: %v", err)
		os.Exit(1)
	}

	db, err := gormdb.Open(cfg.AttemptsDBPath)
	if err != nil {
		log.Errorf("failed to open attempts database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	attempts := gormdb.NewAttemptRepository(db)
	failureCounts := gormdb.NewFailureCountRepository(db)

	failureTracker := cooldown.NewFailureTracker(failureCounts)
	if err := failureTracker.LoadFromDatabase(); err != nil {
		log.Warnf("failed to preload failure counts: %v", err)
	}

	sigCache := signature.New(
		time.Duration(cfg.SignatureCacheTTLMs)*time.Millisecond,
		cfg.MinSignatureLength,
	)
	signature.InitGlobal(sigCache)

	broadcaster := event.NewWSBroadcaster()

	handler := dispatch.NewHandler(manager, cfg, sigCache)
	handler.Attempts = attempts
	handler.Failures = failureTracker
	handler.Events = broadcaster

	srv := server.New(handler, manager, broadcaster)

	go runMaintenanceLoop(manager, sigCache, failureTracker)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infof("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}

// runMaintenanceLoop periodically sweeps the rate-limit window, the
// signature cache, and the stale failure-count rows, mirroring the
// teacher's background-ticker convention for process-wide cache upkeep.
func runMaintenanceLoop(manager *account.Manager, sigCache *signature.Cache, failures *cooldown.FailureTracker) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if n := manager.ClearExpiredLimits(); n > 0 {
			log.Debugf("cleared %d expired rate limits", n)
		}
		sigCache.Sweep()
		failures.CleanupExpired(24 * time.Hour)
	}
}
