// Command peer boots a single mutual-exclusion participant: one
// positional peer_id argument, a handful of flags overriding the
// spec.md §6 defaults, and the interactive REQUEST/RELEASE/LIST_PEERS/
// QUIT menu grounded in original_source/client.py's interface_usuario
// loop.
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jabolina/peer-mutex/pkg/mutex/audit"
	"github.com/jabolina/peer-mutex/pkg/mutex/core"
	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/directory"
	"github.com/jabolina/peer-mutex/pkg/mutex/metrics"
	"github.com/jabolina/peer-mutex/pkg/mutex/transport"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	peerID = kingpin.Arg("peer_id", "this peer's identifier").Required().String()

	listenAddr    = kingpin.Flag("listen", "address the request RPC listener binds to").Default("127.0.0.1:0").String()
	directoryAddr = kingpin.Flag("directory", "base URL of the directory service").Default("http://127.0.0.1:9000").String()
	metricsAddr   = kingpin.Flag("metrics-listen", "address to serve /metrics on").Default("").String()
	heartbeatIvl  = kingpin.Flag("heartbeat-interval", "heartbeat send cadence").Default("15s").Duration()
	heartbeatTO   = kingpin.Flag("heartbeat-timeout", "silence before a peer is suspected dead").Default("35s").Duration()
	requestTO     = kingpin.Flag("request-timeout", "max wait for a ReceiveRequest reply before re-evaluation").Default("20s").Duration()
	maxCSHold     = kingpin.Flag("max-cs-hold", "bounded CS tenure").Default("30s").Duration()
	debug         = kingpin.Flag("debug", "enable debug logging").Bool()
)

func main() {
	kingpin.Parse()

	log := definition.NewDefaultLogger().With(definition.Fields{"peer_id": *peerID})
	log.ToggleDebug(*debug)

	conf := types.DefaultConfiguration(types.PeerId(*peerID))
	conf.HeartbeatInterval = *heartbeatIvl
	conf.HeartbeatTimeout = *heartbeatTO
	conf.RequestTimeout = *requestTO
	conf.MaxCSHold = *maxCSHold

	registry := metrics.NewRegistry(*peerID)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", registry.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	dirClient := directory.NewClient(*directoryAddr)
	reqTransport := transport.NewHTTPRequestTransport(log)

	// Bind before registering so the directory holds our real dialable
	// endpoint; peer.Start reuses this listener when it calls Serve.
	endpoint, err := reqTransport.Bind(*listenAddr)
	if err != nil {
		log.Fatalf("failed binding request listener: %v", err)
	}

	hbTransport, err := transport.NewReltHeartbeatTransport(*peerID, conf.DirectoryPrefix, log)
	if err != nil {
		log.Fatalf("failed joining heartbeat group: %v", err)
	}

	identity := core.PeerIdentity{ID: conf.Self, Endpoint: endpoint}
	membership := core.NewMembership(identity, dirClient, conf, log)
	clock := core.NewLogicalClock()
	invoker := core.NewInvoker()
	auditLog := audit.NewInMemoryLog()

	peer := core.NewPeer(conf, clock, membership, reqTransport, hbTransport, invoker, log, registry, auditLog)
	if err := peer.Start(*listenAddr); err != nil {
		log.Fatalf("failed starting peer: %v", err)
	}
	defer peer.Stop()

	runMenu(peer, conf, log)
}

func runMenu(peer *core.Peer, conf *types.Configuration, log definition.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		printMenu(peer, conf)
		if !scanner.Scan() {
			return
		}
		switch strings.ToUpper(strings.TrimSpace(scanner.Text())) {
		case "REQUEST":
			if err := peer.RequestCS(); err != nil {
				fmt.Printf("cannot request: %v\n", err)
			}
		case "RELEASE":
			peer.ReleaseCS(types.User)
		case "LIST_PEERS":
			peers := peer.KnownPeers()
			if len(peers) == 0 {
				fmt.Println("no other peers known")
				break
			}
			for _, id := range peers {
				fmt.Printf("  - %s (LIVE)\n", id)
			}
		case "QUIT":
			return
		default:
			fmt.Println("unknown command")
		}
	}
}

func printMenu(peer *core.Peer, conf *types.Configuration) {
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("PEER: %s | STATE: %s\n", conf.Self, peer.State())
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("Commands: REQUEST, RELEASE, LIST_PEERS, QUIT")
}
