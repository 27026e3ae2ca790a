package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/logicpath/api"
	"github.com/wricardo/logicpath/game/session"
	"github.com/wricardo/logicpath/transport/mcp"
	"github.com/wricardo/logicpath/transport/websocket"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = time.Hour
	storeSyncPeriod      = 5 * time.Second
	shutdownTimeout      = 10 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server", "http"},
		Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServe,
	}
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel serving
// the same router. It returns after SIGINT/SIGTERM once everything stopped.
func runServe(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(configFromCommand(cmd))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	hub := websocket.NewHub()
	svc.Sessions.SetObserverFactory(hub.ObserverFor)

	apiServer := api.NewServer(svc.Game, hub)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient("http://" + loopbackAddr(addr))
	apiServer.Handle("/mcp", mcpClient.HTTPHandler())

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     apiServer,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", addr)
		log.Info("Endpoints",
			"api", fmt.Sprintf("http://%s/api", addr),
			"ws", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cmd.Bool("ngrok") {
		g.Go(func() error {
			return serveNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), apiServer)
		})
	}

	g.Go(func() error {
		sessionCleanupRoutine(ctx, svc)
		return nil
	})

	if svc.Persistence != nil {
		g.Go(func() error {
			storeSyncRoutine(ctx, svc.Sessions, svc.Persistence)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if runErr := apiServer.Shutdown(shutdownCtx); runErr != nil {
			log.Warn("Background runs still going at shutdown", "error", runErr)
		}
		if saveErr := svc.Sessions.SaveAllSessions(); saveErr != nil {
			log.Warn("Failed to save sessions", "error", saveErr)
		}
		return err
	})

	err = g.Wait()
	log.Info("Server stopped")
	return err
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done. A
// missing auth token disables the tunnel without failing the server.
func serveNgrok(ctx context.Context, authToken, domain string, handler http.Handler) error {
	if authToken == "" {
		log.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return nil
	}

	log.Info("Starting ngrok tunnel...")

	var opts []ngrokConfig.HTTPEndpointOption
	if domain != "" {
		opts = append(opts, ngrokConfig.WithDomain(domain))
		log.Info("Using custom ngrok domain", "domain", domain)
	}

	tun, err := ngrok.Listen(ctx, ngrokConfig.HTTPEndpoint(opts...), ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error("Failed to start ngrok tunnel", "error", err)
		return nil
	}

	url := tun.URL()
	log.Info("🚀 Ngrok tunnel established", "url", url)
	log.Info("Ngrok endpoints", "api", url+"/api", "ws", url+"/ws?session=<session_id>", "mcp", url+"/mcp")

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn("Failed to close ngrok tunnel", "error", err)
		}
	}()

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		log.Error("Ngrok server error", "error", err)
	}
	log.Info("Ngrok tunnel closed")
	return nil
}

// sessionCleanupRoutine removes sessions that were not accessed within
// sessionMaxAge, including rows the sqlite store still holds for them
func sessionCleanupRoutine(ctx context.Context, svc *services) {
	ticker := time.NewTicker(sessionCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.Sessions.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Info("Cleaned up expired sessions", "count", removed)
			}
			if store, ok := svc.Persistence.(*session.SQLitePersistence); ok {
				if n, err := store.DeleteOlderThan(time.Now().Add(-sessionMaxAge)); err != nil {
					log.Warn("Failed to prune stored sessions", "error", err)
				} else if n > 0 {
					log.Info("Pruned stored sessions", "count", n)
				}
			}
		}
	}
}

// storeSyncRoutine drops sessions from memory once their stored copy is gone,
// so deleting a session file or row ends that session
func storeSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(storeSyncPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphanedSessions(manager, persistence)
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if sess.Executor.IsRunning() {
			continue
		}
		if !persistence.Exists(sess.ID) {
			if err := manager.DeleteFromMemory(sess.ID); err == nil {
				pruned++
				log.Info("Pruned session from memory (stored copy deleted)", "session", sess.ID)
			}
		}
	}
	return pruned
}

// loopbackAddr rewrites wildcard hosts so in-process clients can dial addr
func loopbackAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
