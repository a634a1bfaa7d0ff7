// scanwedgectl - control client for the scanwedged daemon
//
//	scanwedgectl status            Show daemon state and counters
//	scanwedgectl recent [-n N]     Show the newest accepted scans
//	scanwedgectl reset             Discard buffered keystrokes
//	scanwedgectl ping              Check the daemon is reachable
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"scanwedged/internal/config"
	"scanwedged/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(args)
	case "recent":
		err = cmdRecent(args)
	case "reset":
		err = cmdReset(args)
	case "ping":
		err = cmdPing(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "scanwedgectl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`scanwedgectl - control the scanwedged daemon

USAGE:
    scanwedgectl <command> [options]

COMMANDS:
    status      Show daemon state, tolerances and counters
    recent      Show the newest accepted scans
    reset       Discard the daemon's buffered keystrokes
    ping        Check the daemon is reachable
    help        Show this help message

OPTIONS:
    -socket <path>   Control socket path (default: daemon default)
    -json            Emit machine-readable JSON (status, recent)
    -n <count>       Number of scans to show (recent, default 10)`)
}

func newClient(fs *flag.FlagSet, args []string) (*ipc.Client, error) {
	socket := fs.String("socket", "", "control socket path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *socket
	if path == "" {
		path = config.DefaultConfig().IPC.SocketPath
	}
	return ipc.NewClient(path), nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	fmt.Printf("pid:                 %d\n", status.PID)
	fmt.Printf("uptime:              %s\n", status.Uptime)
	fmt.Printf("source:              %s\n", status.Source)
	fmt.Printf("buffered keystrokes: %d\n", status.Buffered)
	fmt.Printf("wait tolerance:      %s\n", status.WaitTolerance)
	fmt.Printf("variation tolerance: %s\n", status.VariationTol)
	fmt.Printf("storage:             %v\n", status.StorageEnabled)
	if status.MetricsListen != "" {
		fmt.Printf("metrics:             http://%s/\n", status.MetricsListen)
	}

	if len(status.Counters) > 0 {
		fmt.Println("counters:")
		names := make([]string, 0, len(status.Counters))
		for name := range status.Counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-35s %d\n", name, status.Counters[name])
		}
	}
	return nil
}

func cmdRecent(args []string) error {
	fs := flag.NewFlagSet("recent", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON")
	count := fs.Int("n", 10, "number of scans to show")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}

	scans, err := client.Recent(*count)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(scans)
	}

	if len(scans) == 0 {
		fmt.Println("no scans recorded")
		return nil
	}
	for _, sc := range scans {
		fmt.Printf("%s  %-20s  len=%-3d delay=%s  (%s)\n",
			sc.CapturedAt.Format("2006-01-02 15:04:05"),
			sc.Code, sc.Length, sc.MeanDelay, sc.Source)
	}
	return nil
}

func cmdReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if err := client.Reset(); err != nil {
		return err
	}
	fmt.Println("buffer cleared")
	return nil
}

func cmdPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if err := client.Ping(); err != nil {
		return err
	}
	fmt.Println("daemon is running")
	return nil
}
