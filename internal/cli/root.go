// Package cli wires the cobra root command: swimd takes its bind
// address and seed peers as positional arguments, with no other flags —
// every timing constant is tuned exclusively through the optional TOML
// config file, never the command line.
package cli

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshkeeper/swimd/internal/config"
	"github.com/meshkeeper/swimd/internal/domain"
	"github.com/meshkeeper/swimd/internal/eventlog"
	"github.com/meshkeeper/swimd/internal/statusapi"
	"github.com/meshkeeper/swimd/internal/swim"
	"github.com/meshkeeper/swimd/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "swimd BIND_ADDR [SEED...]",
	Short: "A single-threaded SWIM membership daemon",
	Long: `swimd runs one SWIM protocol participant, probing peers over UDP
and classifying them Active, Suspect, or Dead. BIND_ADDR is the local
UDP address to listen on; any SEED addresses are peers to join at
startup. Timing constants are tunable only via an optional TOML config
file at $SWIMD_HOME/config.toml (default ~/.swimd/config.toml) — there
are no other flags.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwimd,
}

// Execute runs the root command, returning whatever error cobra produces.
func Execute() error {
	return rootCmd.Execute()
}

func runSwimd(cmd *cobra.Command, args []string) error {
	bindAddr := args[0]
	seeds := args[1:]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("swimd: load config: %w", err)
	}

	ep, err := transport.NewEpollEndpoint(bindAddr)
	if err != nil {
		return fmt.Errorf("swimd: bind %s: %w", bindAddr, err)
	}

	node := swim.New(bindAddr, cfg.Protocol, ep)
	if err := node.Join(seeds); err != nil {
		ep.Close()
		return fmt.Errorf("swimd: join: %w", err)
	}

	var evLog *eventlog.Log
	if cfg.EventLog.Enabled {
		evLog, err = eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			ep.Close()
			return fmt.Errorf("swimd: open event log: %w", err)
		}
		node.OnTransition(func(addr string, existed bool, prev, next domain.PeerState) {
			from := "NONE"
			if existed {
				from = prev.String()
			}
			evLog.RecordTransition(addr, from, next.String(), time.Now())
		})
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var srv *http.Server
	if cfg.Status.Enabled {
		statusSrv := statusapi.New(node, evLog)
		srv = &http.Server{Addr: cfg.Status.BindAddr, Handler: statusSrv}
		ln, lnErr := net.Listen("tcp", cfg.Status.BindAddr)
		if lnErr != nil {
			log.Printf("[swimd] status API exited: %v", lnErr)
		} else {
			go func() {
				log.Printf("[swimd] status API listening on %s", ln.Addr())
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Printf("[swimd] status API exited: %v", err)
				}
			}()
		}
	}

	log.Printf("[swimd] node starting on %s with %d seed(s)", bindAddr, len(seeds))
	runErr := node.Run(ctx)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if evLog != nil {
		_ = evLog.Close()
	}
	_ = ep.Close()

	return runErr
}
