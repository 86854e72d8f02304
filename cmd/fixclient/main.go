// Command fixclient is the administrative/test counterpart to
// fixserver: a single-probe mode for scripted Logon/Heartbeat/
// TestRequest/Logout exchanges, and a bench mode for measuring
// steady-state round-trip latency over a pool of pre-authenticated
// connections.
//
// Grounded on the teacher's cmd/client/main.go (connect → Call →
// print), restructured as cobra subcommands per
// marmos91-dittofs's cmd/dittofs command layout.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fixcore/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, sender, target string
	var heartBtInt int
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "fixclient",
		Short:         "Probe a FIX 4.4 session core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:5001", "fixserver address")
	root.PersistentFlags().StringVar(&sender, "sender", "CLIENT", "SenderCompID")
	root.PersistentFlags().StringVar(&target, "target", "SERVER", "TargetCompID")
	root.PersistentFlags().IntVar(&heartBtInt, "heartbeat", 30, "HeartBtInt (seconds) to request at Logon")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")

	root.AddCommand(newProbeCmd(&addr, &sender, &target, &heartBtInt, &timeout))
	root.AddCommand(newBenchCmd(&addr, &sender, &target, &heartBtInt, &timeout))
	return root
}

func newProbeCmd(addr, sender, target *string, heartBtInt *int, timeout *time.Duration) *cobra.Command {
	var resetSeqNum bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Logon, send one TestRequest, then Logout",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr, *sender, *target, *heartBtInt, resetSeqNum, *timeout)
			if err != nil {
				return fmt.Errorf("fixclient: logon: %w", err)
			}

			testReqID := "PROBE_" + uuid.NewString()[:8]
			reply, err := c.TestRequest(testReqID, *timeout)
			if err != nil {
				c.Close()
				return fmt.Errorf("fixclient: test request: %w", err)
			}
			fmt.Printf("heartbeat reply: %s\n", reply.MsgType())

			if err := c.Logout(*timeout); err != nil {
				return fmt.Errorf("fixclient: logout: %w", err)
			}
			fmt.Println("session closed cleanly")
			return nil
		},
	}
	cmd.Flags().BoolVar(&resetSeqNum, "reset-seq-num", false, "set ResetSeqNumFlag=Y on Logon")
	return cmd
}

func newBenchCmd(addr, sender, target *string, heartBtInt *int, timeout *time.Duration) *cobra.Command {
	var size, rounds int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run repeated TestRequest/Heartbeat probes over a pool of pre-authenticated connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := client.DialPool(*addr, *sender, *target, *heartBtInt, size, *timeout)
			defer pool.Close()

			var total time.Duration
			var failures int
			for i := 0; i < rounds; i++ {
				testReqID := fmt.Sprintf("BENCH_%d", i)
				start := time.Now()
				if _, err := pool.Probe(testReqID, *timeout); err != nil {
					failures++
					continue
				}
				total += time.Since(start)
			}

			successes := rounds - failures
			fmt.Printf("rounds=%d successes=%d failures=%d\n", rounds, successes, failures)
			if successes > 0 {
				fmt.Printf("avg round trip: %s\n", (total / time.Duration(successes)).String())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "pool-size", 4, "number of pre-authenticated connections to keep in the pool")
	cmd.Flags().IntVar(&rounds, "rounds", 100, "number of probe round trips to run")
	return cmd
}
