package main

import (
	"flag"
	"log"
	"net/http"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/nicolagi/naming/internal/config"
	"github.com/nicolagi/naming/internal/dirtree"
	"github.com/nicolagi/naming/internal/lockmgr"
	"github.com/nicolagi/naming/internal/naming"
	"github.com/nicolagi/naming/internal/netutil"
	"github.com/nicolagi/naming/internal/replication"
)

// serveRPC registers rpcService under name on its own *rpc.Server and
// *http.ServeMux, then serves it on listener. Each of the two naming
// server roles (client-facing Service, storage-server-facing
// Registration) gets its own listener and mux, since net/rpc's
// HandleHTTP otherwise collides on http.DefaultServeMux.
func serveRPC(name string, rpcService interface{}, network, address string) {
	server := rpc.NewServer()
	if err := server.RegisterName(name, rpcService); err != nil {
		log.Fatalf("Could not register %s: %v", name, err)
	}
	mux := http.NewServeMux()
	server.HandleHTTP(mux, "/_goRPC_", "/debug/rpc")
	listener, err := netutil.Listen(name, network, address)
	if err != nil {
		log.Fatalf("Could not listen for %s on %s %s: %v", name, network, address, err)
	}
	go func() {
		log.Printf("Serving %s on %s %s", name, network, address)
		if err := http.Serve(listener, mux); err != nil {
			log.Fatalf("%s listener stopped: %v", name, err)
		}
	}()
}

func main() {
	if err := agent.Listen(agent.Options{}); err != nil {
		log.Printf("Could not start gops agent: %v", err)
	}

	cfgPath := flag.String("config", "naming.ini", "Path to the naming server's ini configuration file")
	replicaThreshold := flag.Int("replica-threshold", -1, "Override the configured replica threshold")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Could not load config from %q: %v", *cfgPath, err)
	}
	if *replicaThreshold > 0 {
		cfg.ReplicaThreshold = *replicaThreshold
	}

	tree := dirtree.New()
	locks := lockmgr.New(tree, cfg.ReplicaThreshold, nil)
	core := naming.NewCore(tree, locks)
	ctrl := replication.New(tree, locks, core.Registry(), cfg.ReplicationWorkers)
	locks.SetTrigger(ctrl)

	serveRPC("Service", naming.NewService(core), cfg.ServiceListenNet, cfg.ServiceListenAddr)
	serveRPC("Registration", naming.NewRegistration(core), cfg.RegistrationListenNet, cfg.RegistrationListenAddr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Printf("Got signal %q, draining replication tasks before exiting.", sig)
	ctrl.Wait()
	agent.Close()
}
