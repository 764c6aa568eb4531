// Command directoryd runs the naming/discovery service every peer
// registers with, an external collaborator per spec.md §1/§6, grounded
// in original_source/client.py's use of a Pyro name server.
package main

import (
	"net/http"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/directory"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	listenAddr = kingpin.Flag("listen", "address the directory service binds to").Default("127.0.0.1:9000").String()
	debug      = kingpin.Flag("debug", "enable debug logging").Bool()
)

func main() {
	kingpin.Parse()

	log := definition.NewDefaultLogger()
	log.ToggleDebug(*debug)

	server := directory.NewServer(log)
	mux := http.NewServeMux()
	server.Routes(mux)

	log.Infof("directory service listening on %s", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, mux); err != nil {
		log.Fatalf("directory service stopped: %v", err)
	}
}
