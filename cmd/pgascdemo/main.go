// Command pgascdemo runs a small in-process broadcast over
// transport/inproc, exercising the full Init -> submit -> poll path
// without a real network. Grounded on the teacher's cmd/zmq-bench harness
// shape: flag-parsed knobs, one goroutine per simulated participant, plain
// fmt output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/pgasc"
	"github.com/luxfi/pgasc/bootstrap"
	"github.com/luxfi/pgasc/collective"
	"github.com/luxfi/pgasc/transport"
	"github.com/luxfi/pgasc/transport/inproc"
)

func main() {
	var (
		ranks   = flag.Int("ranks", 4, "Number of simulated ranks")
		nbytes  = flag.Int("bytes", 64, "Payload size per rank, in bytes")
		quiet   = flag.Bool("quiet", false, "Suppress per-rank output")
		useEager = flag.Bool("eager", true, "Set eagermin above the payload size (the ALLSYNC flags used here still select the Put algorithm)")
	)
	flag.Parse()

	if err := run(*ranks, *nbytes, *quiet, *useEager); err != nil {
		fmt.Fprintln(os.Stderr, "pgascdemo:", err)
		os.Exit(1)
	}
}

func run(nRanks, nbytes int, quiet, eager bool) error {
	net := inproc.NewNetwork(nRanks)
	reg := prometheus.NewRegistry()

	eagerMin := nbytes - 1
	if eager {
		eagerMin = nbytes + 1
	}

	clients := make([]*pgasc.Client, nRanks)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var initErr error

	for r := 0; r < nRanks; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep := inproc.NewEndpoint(net, transport.Rank(r))
			boot := inproc.NewBoot(net, transport.Rank(r))

			c, err := pgasc.Init(context.Background(), boot, bootstrap.Config{
				Images:     1,
				EagerMin:   eagerMin,
				RMA:        ep,
				AM:         ep,
				Notifier:   net,
				Segments:   allSegment{},
				Registerer: reg,
			}, nRanks, log.NewNoOpLogger())
			mu.Lock()
			if err != nil && initErr == nil {
				initErr = err
			}
			if err == nil {
				clients[r] = c
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if initErr != nil {
		return initErr
	}

	root := transport.Rank(0)
	var wg2 sync.WaitGroup
	for r := 0; r < nRanks; r++ {
		r := r
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			c := clients[r]
			pctx := c.NewContext(uint64(r))

			src := make([]byte, nbytes)
			if r == int(root) {
				for i := range src {
					src[i] = byte(i + 1)
				}
			}
			srcAddr := net.Register(transport.Rank(r), src)
			dstAddr := srcAddr

			flags := collective.InAllSync | collective.OutAllSync | collective.Single |
				collective.SrcInSegment | collective.DstInSegment
			h, err := c.BroadcastNB(pctx, pgasc.AllTeam, root, dstAddr, srcAddr, nbytes, src, flags)
			if err != nil {
				fmt.Fprintf(os.Stderr, "rank %d: broadcast: %v\n", r, err)
				return
			}
			c.WaitSync(pctx, h)

			if !quiet {
				fmt.Printf("rank %d: received %x\n", r, src[:min(8, len(src))])
			}
		}()
	}
	wg2.Wait()
	return nil
}

// allSegment treats every address as in-segment: the demo never exercises
// the bounds-checking validation path.
type allSegment struct{}

func (allSegment) InSegment(transport.Rank, uintptr, int) bool { return true }
