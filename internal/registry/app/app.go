// Package app wires the registry daemon: mirror store, ledger client,
// reconciliation engine, and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/terrachain/registry/internal/registry/api/http"
	"github.com/terrachain/registry/internal/registry/engine"
	"github.com/terrachain/registry/internal/registry/ledger"
	"github.com/terrachain/registry/internal/registry/ledger/fabric"
	storagesqlite "github.com/terrachain/registry/internal/registry/storage/sqlite"
)

// Env holds the daemon's environment configuration.
type Env struct {
	Addr   string `env:"LANDREG_HTTP_ADDR" envDefault:":8080"`
	DBPath string `env:"LANDREG_DB_PATH" envDefault:"data/registry.db"`

	// JWTSecret enables bearer-token API authentication when set.
	JWTSecret string `env:"LANDREG_API_JWT_SECRET"`

	// BlockExecuteOnOpenDispute makes execution fail while a dispute is open.
	BlockExecuteOnOpenDispute bool `env:"LANDREG_BLOCK_EXECUTE_ON_OPEN_DISPUTE" envDefault:"false"`

	// RoleCacheTTL bounds staleness of cached contract role lookups.
	RoleCacheTTL time.Duration `env:"LANDREG_ROLE_CACHE_TTL" envDefault:"1m"`

	// ReplayInterval is how often parked events are retried. Zero disables
	// the background replayer.
	ReplayInterval time.Duration `env:"LANDREG_REPLAY_INTERVAL" envDefault:"1m"`

	// Fabric gateway settings.
	FabricConnectionProfile string        `env:"LANDREG_FABRIC_CONNECTION_PROFILE"`
	FabricWalletPath        string        `env:"LANDREG_FABRIC_WALLET_PATH" envDefault:"wallet"`
	FabricIdentity          string        `env:"LANDREG_FABRIC_IDENTITY" envDefault:"registryUser"`
	FabricMSPID             string        `env:"LANDREG_FABRIC_MSP_ID"`
	FabricCertPath          string        `env:"LANDREG_FABRIC_CERT_PATH"`
	FabricKeyPath           string        `env:"LANDREG_FABRIC_KEY_PATH"`
	FabricChannel           string        `env:"LANDREG_FABRIC_CHANNEL" envDefault:"registrychannel"`
	FabricContract          string        `env:"LANDREG_FABRIC_CONTRACT" envDefault:"landregistry"`
	FabricCommitTimeout     time.Duration `env:"LANDREG_FABRIC_COMMIT_TIMEOUT" envDefault:"2m"`
}

const httpShutdownTimeout = 10 * time.Second

// Run starts the daemon against the Fabric network named in env and serves
// the HTTP API until ctx is done.
func Run(ctx context.Context, env Env) error {
	ledgerClient, err := fabric.Connect(fabric.Options{
		ConnectionProfile: env.FabricConnectionProfile,
		WalletPath:        env.FabricWalletPath,
		Identity:          env.FabricIdentity,
		MSPID:             env.FabricMSPID,
		CertPath:          env.FabricCertPath,
		KeyPath:           env.FabricKeyPath,
		Channel:           env.FabricChannel,
		Contract:          env.FabricContract,
		CommitTimeout:     env.FabricCommitTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer ledgerClient.Close()
	return RunWithLedger(ctx, env, ledgerClient)
}

// RunWithLedger starts the daemon with an externally constructed ledger
// client. Tests and alternative deployments inject their own client here.
func RunWithLedger(ctx context.Context, env Env, ledgerClient ledger.Client) error {
	store, err := storagesqlite.Open(env.DBPath)
	if err != nil {
		return fmt.Errorf("open mirror store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close mirror store: %v", err)
		}
	}()

	eng, err := engine.New(engine.Options{
		Ledger:       ledgerClient,
		Store:        store,
		Policy:       engine.Policy{BlockExecuteOnOpenDispute: env.BlockExecuteOnOpenDispute},
		RoleCacheTTL: env.RoleCacheTTL,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := eng.RunIngestion(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingestion stopped: %v", err)
		}
	}()
	if env.ReplayInterval > 0 {
		go runReplayer(runCtx, eng, env.ReplayInterval)
	}

	server := httpapi.New(eng, httpapi.Options{JWTSecret: secretBytes(env.JWTSecret)})
	httpServer := &http.Server{
		Addr:    env.Addr,
		Handler: otelhttp.NewHandler(server.Router(), "registry-http"),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("serving registry API on %s", env.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func runReplayer(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			replayed, err := eng.ReplayParked(ctx)
			if err != nil {
				log.Printf("replay parked events: %v", err)
				continue
			}
			if replayed > 0 {
				log.Printf("replayed %d parked events", replayed)
			}
		}
	}
}

func secretBytes(secret string) []byte {
	if secret == "" {
		return nil
	}
	return []byte(secret)
}
