// dhtnode runs a Mainline BitTorrent DHT node: it answers BEP-5 queries,
// optionally bootstraps into the network from a set of seed endpoints,
// and can report every newly discovered node as a JSON record.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/urfave/cli.v1"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
)

// Version is the application revision identifier, set with the linker as
// in: go build -ldflags "-X main.Version="`git describe --tags`
var Version = "source"

var (
	listenAddrFlag = cli.StringFlag{Name: "addr", Value: ":6881", Usage: "UDP listen address"}
	seedFlag       = cli.StringSliceFlag{Name: "seed", Usage: "bootstrap seed endpoint host:port, may be repeated"}
	seedFileFlag   = cli.StringFlag{Name: "seed-file", Usage: "file of bootstrap seed endpoints, one per line, reloaded on write"}
	readOnlyFlag   = cli.BoolFlag{Name: "readonly", Usage: "operate read-only per BEP-43: never recorded into peers' routing tables"}
	verbosityFlag  = cli.IntFlag{Name: "verbosity", Value: glog.Info, Usage: "log verbosity (0-4)"}
	outFlag        = cli.StringFlag{Name: "out", Usage: "file to append discovery records to, defaults to stdout"}
	idFlag         = cli.StringFlag{Name: "id", Usage: "persistent node id as 40 hex characters; random if omitted"}
	dashTickFlag   = cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "dashboard refresh interval"}
)

func main() {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Version = Version
	app.Usage = "a Mainline DHT node"

	app.Flags = []cli.Flag{listenAddrFlag, seedFlag, seedFileFlag, readOnlyFlag, verbosityFlag, outFlag, idFlag}

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "bind a UDP port, optionally bootstrap, and serve queries",
			Action: runCommand,
		},
		{
			Name:   "console",
			Usage:  "bind a UDP port and attach an interactive console",
			Action: consoleCommand,
		},
		{
			Name:   "dashboard",
			Usage:  "bind a UDP port and attach a live termui dashboard",
			Flags:  []cli.Flag{dashTickFlag},
			Action: dashboardCommand,
		},
		{
			Name:   "genid",
			Usage:  "print a freshly generated random node id and exit",
			Action: genIDCommand,
		},
	}

	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		glog.Errorf("dhtnode: %v", err)
		os.Exit(1)
	}
}

func genIDCommand(ctx *cli.Context) error {
	id, err := krpc.Random()
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// nodeID resolves the -id flag to a NodeID, or draws a fresh random one.
func nodeID(ctx *cli.Context) (krpc.NodeID, error) {
	if s := ctx.GlobalString(idFlag.Name); s != "" {
		b, err := hex.DecodeString(s)
		if err != nil {
			return krpc.NodeID{}, fmt.Errorf("bad -id: %w", err)
		}
		return krpc.IDFromBytes(b)
	}
	return krpc.Random()
}

// seedEndpoints collects every -seed flag plus every line of -seed-file
// present at startup. Hot-reload of the seed file is handled separately,
// by watchSeedFile, once the node is already running.
func seedEndpoints(ctx *cli.Context) ([]krpc.Endpoint, error) {
	var out []krpc.Endpoint
	for _, s := range ctx.GlobalStringSlice(seedFlag.Name) {
		ep, err := resolveSeedEndpoint(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", s, err)
		}
		out = append(out, ep)
	}
	if path := ctx.GlobalString(seedFileFlag.Name); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		lines, err := readLines(f)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ep, err := resolveSeedEndpoint(line)
			if err != nil {
				return nil, fmt.Errorf("seed file line %q: %w", line, err)
			}
			out = append(out, ep)
		}
	}
	return out, nil
}

// buildNode is the bring-up sequence shared by every subcommand: resolve
// the node id, set verbosity, build a discovery sink (a file if -out
// names one, stdout otherwise), and wire up the node.
func buildNode(ctx *cli.Context) (*node, error) {
	glog.SetVerbosity(ctx.GlobalInt(verbosityFlag.Name))

	id, err := nodeID(ctx)
	if err != nil {
		return nil, err
	}

	var sink discoverySink
	if path := ctx.GlobalString(outFlag.Name); path != "" {
		sink = newDiscoverySink(afero.NewOsFs(), path)
	} else {
		sink = newStreamDiscoverySink(os.Stdout)
	}

	return newNode(id, ctx.GlobalString(listenAddrFlag.Name), ctx.GlobalBool(readOnlyFlag.Name), sink)
}

func runCommand(ctx *cli.Context) error {
	n, err := buildNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	seeds, err := seedEndpoints(ctx)
	if err != nil {
		return err
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		glog.V(glog.Info).Infof("dhtnode: shutting down")
		cancel()
	}()

	if len(seeds) > 0 {
		n.bootstrap(rootCtx, seeds)
	}
	if path := ctx.GlobalString(seedFileFlag.Name); path != "" {
		reload := make(chan krpc.Endpoint, 32)
		go func() {
			if err := watchSeedFile(path, reload, rootCtx.Done()); err != nil {
				glog.V(glog.Warning).Infof("dhtnode: watching seed file: %v", err)
			}
		}()
		go func() {
			for ep := range reload {
				n.bootstrap(rootCtx, []krpc.Endpoint{ep})
			}
		}()
	}

	glog.V(glog.Info).Infof("dhtnode: serving as %s on %s", n.id, ctx.GlobalString(listenAddrFlag.Name))
	err = n.serve(rootCtx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func consoleCommand(ctx *cli.Context) error {
	n, err := buildNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	seeds, err := seedEndpoints(ctx)
	if err != nil {
		return err
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := n.serve(rootCtx); err != nil && err != context.Canceled {
			glog.V(glog.Warning).Infof("dhtnode: serve: %v", err)
		}
	}()
	if len(seeds) > 0 {
		n.bootstrap(rootCtx, seeds)
	}

	c := newConsole(n)
	defer c.Close()
	c.Welcome()
	c.Interactive()
	return nil
}

func dashboardCommand(ctx *cli.Context) error {
	n, err := buildNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	seeds, err := seedEndpoints(ctx)
	if err != nil {
		return err
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := n.serve(rootCtx); err != nil && err != context.Canceled {
			glog.V(glog.Warning).Infof("dhtnode: serve: %v", err)
		}
	}()
	if len(seeds) > 0 {
		n.bootstrap(rootCtx, seeds)
	}

	return runDashboard(n, ctx.Duration(dashTickFlag.Name))
}
