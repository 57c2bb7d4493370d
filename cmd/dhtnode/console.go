package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	wordwrap "github.com/mitchellh/go-wordwrap"
	"github.com/peterh/liner"
	"github.com/robertkrimen/otto"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
	"github.com/coredht/dht/transport"
)

// consoleHelpWidth is the column width the help description is wrapped
// to, matching a typical terminal's default.
const consoleHelpWidth = 80

// console is a liner-backed interactive shell over a running node: a
// handful of built-in commands (ping, find-node, get-peers, announce,
// table) plus an eval command handing the rest of the line to an otto
// JavaScript VM that exposes ping, tableSize and ownerID as callable
// functions.
// There is no IPC endpoint or RPC machinery here, just the in-process
// node.
type console struct {
	node *node
	line *liner.State
	vm   *otto.Otto
}

func newConsole(n *node) *console {
	c := &console{node: n, line: liner.NewLiner()}
	c.line.SetCtrlCAborts(true)
	c.vm = otto.New()
	c.bindVM()
	return c
}

func (c *console) Close() error {
	return c.line.Close()
}

// Welcome prints the banner shown on entering interactive mode.
func (c *console) Welcome() {
	fmt.Printf("dhtnode console\nnode id: %s\ntype \"help\" for a list of commands\n\n", c.node.id)
}

// Interactive runs the read-eval-print loop until the user exits with
// "exit", "quit", or EOF (Ctrl-D).
func (c *console) Interactive() {
	for {
		line, err := c.line.Prompt("> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			return
		}
		if err != nil {
			glog.V(glog.Warning).Infof("dhtnode: console prompt: %v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.line.AppendHistory(line)
		if line == "exit" || line == "quit" {
			return
		}
		c.Evaluate(line)
	}
}

// Evaluate runs a single line, either as a built-in command or, prefixed
// with "eval ", as JavaScript handed to the otto VM.
func (c *console) Evaluate(line string) {
	if rest := strings.TrimPrefix(line, "eval "); rest != line {
		c.evalJS(rest)
		return
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch cmd {
	case "help":
		c.printHelp()
	case "ping":
		err = c.cmdPing(ctx, args)
	case "find-node":
		err = c.cmdFindNode(ctx, args)
	case "get-peers":
		err = c.cmdGetPeers(ctx, args)
	case "announce":
		err = c.cmdAnnounce(ctx, args)
	case "table":
		c.cmdTable()
	default:
		err = fmt.Errorf("unknown command %q, type \"help\" for a list", cmd)
	}
	if err != nil {
		fmt.Println("error:", err)
	}
}

const helpDescription = "Built-in commands operate directly on this node's routing table and transport, without any RPC layer in between: ping, find-node, get-peers, and announce each take a target host:port and, where relevant, a hex-encoded id; table prints local state; eval hands the rest of the line to a JavaScript VM exposing ping(hostport), tableSize() and ownerID() as callable functions; exit or Ctrl-D leaves the console."

func (c *console) printHelp() {
	fmt.Println("commands:\n  ping <host:port>\n  find-node <host:port> <target hex id>\n  get-peers <host:port> <infohash hex>\n  announce <host:port> <infohash hex> <port>\n  table\n  eval <javascript>\n  exit\n")
	fmt.Println(wordwrap.WrapString(helpDescription, consoleHelpWidth))
}

func (c *console) cmdPing(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ping <host:port>")
	}
	addr, err := resolveSeed(args[0])
	if err != nil {
		return err
	}
	id, err := c.node.request.Ping(ctx, addr.UDPAddr())
	if err != nil {
		return err
	}
	fmt.Println("pong from", id)
	return nil
}

func (c *console) cmdFindNode(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: find-node <host:port> <target hex id>")
	}
	addr, err := resolveSeed(args[0])
	if err != nil {
		return err
	}
	target, err := parseHexID(args[1])
	if err != nil {
		return err
	}
	result, err := c.node.request.FindNode(ctx, addr.UDPAddr(), target)
	if err != nil {
		return err
	}
	fmt.Printf("%s returned %d node(s)\n", result.ID, len(result.Nodes))
	for _, n := range result.Nodes {
		fmt.Printf("  %s %s\n", n.ID, n.Addr)
	}
	return nil
}

func (c *console) cmdGetPeers(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get-peers <host:port> <infohash hex>")
	}
	addr, err := resolveSeed(args[0])
	if err != nil {
		return err
	}
	infoHash, err := parseHexID(args[1])
	if err != nil {
		return err
	}
	result, err := c.node.request.GetPeers(ctx, addr.UDPAddr(), infoHash)
	if err != nil {
		return err
	}
	if len(result.Peers) > 0 {
		fmt.Printf("%s has %d peer(s) on file\n", result.ID, len(result.Peers))
		for _, p := range result.Peers {
			fmt.Println(" ", p)
		}
		return nil
	}
	fmt.Printf("%s has no peers, %d closer node(s)\n", result.ID, len(result.Nodes))
	for _, n := range result.Nodes {
		fmt.Printf("  %s %s\n", n.ID, n.Addr)
	}
	return nil
}

func (c *console) cmdAnnounce(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: announce <host:port> <infohash hex> <port>")
	}
	addr, err := resolveSeed(args[0])
	if err != nil {
		return err
	}
	infoHash, err := parseHexID(args[1])
	if err != nil {
		return err
	}
	port, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("bad port: %w", err)
	}

	peersResult, err := c.node.request.GetPeers(ctx, addr.UDPAddr(), infoHash)
	if err != nil {
		return fmt.Errorf("get_peers before announce: %w", err)
	}
	id, err := c.node.request.AnnouncePeer(ctx, addr.UDPAddr(), infoHash, peersResult.Token, transport.ExplicitPort(uint16(port)))
	if err != nil {
		return err
	}
	fmt.Println("announced to", id)
	return nil
}

func (c *console) cmdTable() {
	fmt.Println("owner:", c.node.id)
	fmt.Println("announced infohashes:", c.node.announces.Count())
}

func resolveSeed(hostport string) (krpc.Endpoint, error) {
	return resolveEndpoint(hostport)
}

// bindVM exposes a subset of the node's operations to the otto VM as
// plain JavaScript functions, so "eval" lines can script ad-hoc filtering
// or batches of lookups without growing the built-in command set.
func (c *console) bindVM() {
	c.vm.Set("ping", func(call otto.FunctionCall) otto.Value {
		hostport := call.Argument(0).String()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		addr, err := resolveSeed(hostport)
		if err != nil {
			return c.jsError(err)
		}
		id, err := c.node.request.Ping(ctx, addr.UDPAddr())
		if err != nil {
			return c.jsError(err)
		}
		v, _ := c.vm.ToValue(id.String())
		return v
	})
	c.vm.Set("tableSize", func(call otto.FunctionCall) otto.Value {
		v, _ := c.vm.ToValue(c.node.announces.Count())
		return v
	})
	c.vm.Set("ownerID", func(call otto.FunctionCall) otto.Value {
		v, _ := c.vm.ToValue(c.node.id.String())
		return v
	})
}

func (c *console) jsError(err error) otto.Value {
	v, _ := c.vm.ToValue(err.Error())
	return v
}

// evalJS runs src against the bound otto VM and prints its result.
func (c *console) evalJS(src string) {
	v, err := c.vm.Run(src)
	if err != nil {
		fmt.Println("js error:", err)
		return
	}
	if v.IsUndefined() {
		return
	}
	fmt.Println(v.String())
}
