package routing

import (
	"context"
	"time"

	set "gopkg.in/fatih/set.v0"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
	"github.com/coredht/dht/transport"
)

// Bootstrap performs a breadth-first traversal starting from seed,
// populating table via requester's find_node calls. It terminates when
// the queue empties, when a successful reply's AddNode call declines to
// grow the table (a well-defined "full enough" signal), or when ctx is
// done. A failed find_node to a given endpoint is logged and traversal
// continues with the rest of the queue.
func Bootstrap(ctx context.Context, table *RoutingTable, requester *transport.RequestTransport, seed krpc.Endpoint) error {
	visited := set.New()
	visited.Add(seed.String())
	queue := []krpc.Endpoint{seed}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ep := queue[0]
		queue = queue[1:]

		result, err := requester.FindNode(ctx, ep.UDPAddr(), table.OwnerID())
		if err != nil {
			glog.V(glog.Debug).Infof("routing: bootstrap find_node to %s failed: %v", ep, err)
			continue
		}

		contact := table.AddNode(ctx, requester, krpc.NodeInfo{ID: result.ID, Addr: ep})
		if contact == nil {
			glog.V(glog.Info).Infof("routing: bootstrap stopping, table declined to grow for %s", ep)
			return nil
		}
		contact.MarkSuccessfulQuery(time.Now())

		for _, n := range result.Nodes {
			key := n.Addr.String()
			if visited.Has(key) {
				continue
			}
			visited.Add(key)
			queue = append(queue, n.Addr)
		}
	}

	return nil
}
