package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/dispense.go/pkg/config"
	"github.com/robotalks/dispense.go/pkg/console"
	fx "github.com/robotalks/dispense.go/pkg/framework"
	"github.com/robotalks/dispense.go/pkg/mqtt"
)

var configFile string

func init() {
	config.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML config file, applied over flags")
}

type stdio struct {
	io.Reader
	io.Writer
}

func serveConsole(conf *config.Config, interp *console.Interpreter) fx.Runnable {
	if conf.Console == "" {
		return fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, os.Stdin, func() error {
				return interp.Serve(ctx, stdio{Reader: os.Stdin, Writer: os.Stdout})
			})
		}))
	}
	return fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
		port, err := serial.Open(conf.Console, &serial.Mode{BaudRate: conf.ConsoleBaud})
		if err != nil {
			return err
		}
		glog.Infof("console on %s", conf.Console)
		return fx.RunWithContextCloser(ctx, port, func() error {
			return interp.Serve(ctx, port)
		})
	}))
}

func main() {
	flag.Parse()

	conf := config.NewConfig()
	if configFile != "" {
		var err error
		if conf, err = config.LoadFile(configFile); err != nil {
			glog.Exitln(err)
		}
	}
	session, err := conf.NewSession()
	if err != nil {
		glog.Exitln(err)
	}
	if closer, ok := session.Link.(io.Closer); ok {
		defer closer.Close()
	}

	runner := fx.NewRunner().HandleSignals()
	n, err := session.Reset(runner.Context)
	if err != nil {
		glog.Exitf("bus reset: %v", err)
	}
	glog.Infof("%d dispensers on %s", n, conf.Link)

	interp := console.New(session)
	if conf.Console != config.ConsoleNone {
		runner.Go(serveConsole(conf, interp))
	}
	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, conf.Name(), interp)
		if err != nil {
			glog.Exitln(err)
		}
		bridge.Meta.Description = "Dispenser bus master"
		bridge.Meta.Labels = map[string]string{"link": conf.Link}
		bridge.CheckInterval = conf.CheckInterval
		runner.Go(fx.NamedRun("mqtt", bridge))
	}
	if len(runner.Runners) == 0 {
		glog.Exitln("nothing to serve: console disabled and no MQTT broker")
	}
	if err := runner.Wait(); err != nil {
		glog.Exitln(err)
	}
}
