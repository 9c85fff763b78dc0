package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net/http"
	"net/url"

	"github.com/golang/glog"

	fx "github.com/robotalks/dispense.go/pkg/framework"
	"github.com/robotalks/dispense.go/pkg/link"
	"github.com/robotalks/dispense.go/pkg/link/websocket"
)

var (
	listenAddr = ":8080"
	chainSpec  = "dispensers=3"
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "HTTP listen address")
	flag.StringVar(&chainSpec, "chain", chainSpec,
		"Simulated chain, e.g. dispensers=3&status=2:5&state=1:7")
}

func main() {
	flag.Parse()

	q, err := url.ParseQuery(chainSpec)
	if err != nil {
		glog.Exitf("invalid chain: %v", err)
	}
	chain, err := link.OpenSim(q)
	if err != nil {
		glog.Exitf("invalid chain: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/bus", websocket.Server(chain))
	server := &http.Server{Addr: listenAddr, Handler: mux}

	glog.Infof("simulating %d dispensers on ws://%s/bus", len(chain.Dispensers), listenAddr)
	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("http", fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
	})))
	if err := runner.Wait(); err != nil {
		glog.Exitln(err)
	}
}
