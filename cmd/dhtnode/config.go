package main

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/rjeczalik/notify"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
)

const osAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// seedSource owns the optional seed-endpoints file: an initial parse plus a
// notify.Watch-driven reload whenever the file changes on disk.
type seedSource struct {
	mu   sync.Mutex
	path string
	out  chan<- krpc.Endpoint
}

// watchSeedFile parses path once to seed its "already seen" set (the
// caller is assumed to have bootstrapped from that initial parse itself),
// then watches the file for writes and emits any endpoint newly present
// after a write. It runs until stop is closed.
func watchSeedFile(path string, out chan<- krpc.Endpoint, stop <-chan struct{}) error {
	s := &seedSource{path: path, out: out}
	seen, err := s.parse()
	if err != nil {
		return err
	}

	events := make(chan notify.EventInfo, 8)
	if err := notify.Watch(path, events, notify.Write); err != nil {
		return err
	}
	defer notify.Stop(events)

	for {
		select {
		case <-stop:
			return nil
		case <-events:
			fresh, err := s.parse()
			if err != nil {
				glog.V(glog.Warning).Infof("dhtnode: reloading seed file %s: %v", path, err)
				continue
			}
			for ep := range fresh {
				if !seen[ep] {
					seen[ep] = true
					s.out <- ep
				}
			}
		}
	}
}

// parse reads every endpoint currently in the seed file, returning them as
// a set; it has no side effect on s.out.
func (s *seedSource) parse() (map[krpc.Endpoint]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[krpc.Endpoint]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ep, err := parseSeedLine(line)
		if err != nil {
			glog.V(glog.Warning).Infof("dhtnode: skipping malformed seed line %q: %v", line, err)
			continue
		}
		out[ep] = true
	}
	return out, scanner.Err()
}

func parseSeedLine(line string) (krpc.Endpoint, error) {
	return resolveSeedEndpoint(line)
}
