// Command ssttool inspects a single SST file: header and per-level
// occupancy, a bounded key-range scan, and a verify pass that checks
// sortedness and Bloom-filter soundness. Modeled on this corpus's
// sst_dump tool, scoped to the layered-level on-disk format in
// internal/sst rather than RocksDB's block/footer format.
//
// Usage:
//
//	ssttool --file=<path> [--command=<cmd>] [options]
//
// Commands (--command):
//
//	properties  Show header and per-level occupancy (default)
//	scan        Scan all live key/offset/vlen records
//	verify      Check sortedness of the merged run and Get of every live key
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/colasst/colasst/internal/logging"
	"github.com/colasst/colasst/internal/sst"
	"github.com/colasst/colasst/internal/stats"
	"github.com/colasst/colasst/internal/vfs"
)

var (
	filePath  = flag.String("file", "", "path to the SST file (required)")
	command   = flag.String("command", "properties", "command: properties, scan, verify")
	fromKey   = flag.String("from", "", "start key for scan (inclusive)")
	toKey     = flag.String("to", "", "end key for scan (exclusive)")
	limit     = flag.Int("limit", 0, "limit number of scan entries (0 = unlimited)")
	hexOutput = flag.Bool("hex", false, "print keys in hex instead of raw text")
)

func main() {
	flag.Parse()
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "error: --file is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := dispatch(*command); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch runs the named command against the file in *filePath.
func dispatch(cmd string) error {
	switch cmd {
	case "properties":
		return cmdProperties()
	case "scan":
		return cmdScan()
	case "verify":
		return cmdVerify()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openSST() (*sst.SST, error) {
	return sst.Open(vfs.Default(), *filePath, stats.New(), logging.Discard, nil, 0)
}

func formatKey(key []byte) string {
	if *hexOutput {
		return hex.EncodeToString(key)
	}
	return string(key)
}

func cmdProperties() error {
	s, err := openSST()
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("SST file: %s\n", *filePath)
	fmt.Printf("Willfull: %v\n", s.Willfull())
	fmt.Printf("Wasted bytes: %d\n", s.Wasted())
	fmt.Printf("Max key: %s\n", formatKey(s.MaxKey()))
	fmt.Println("---")
	fmt.Printf("%-6s %10s %10s %6s\n", "level", "count", "capacity", "full")
	for _, lvl := range s.Occupancy() {
		fmt.Printf("%-6d %10d %10d %6v\n", lvl.Level, lvl.Count, lvl.Capacity, lvl.Full)
	}
	return nil
}

func cmdScan() error {
	s, err := openSST()
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.InOne()
	if err != nil {
		return fmt.Errorf("InOne: %w", err)
	}

	count := 0
	for _, it := range items {
		if !it.Live() {
			continue
		}
		if *fromKey != "" && string(it.Key) < *fromKey {
			continue
		}
		if *toKey != "" && string(it.Key) >= *toKey {
			break
		}
		fmt.Printf("%s => offset=%d vlen=%d\n", formatKey(it.Key), it.Offset, it.VLen)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}
	fmt.Printf("---\ntotal entries: %d\n", count)
	return nil
}

func cmdVerify() error {
	s, err := openSST()
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.InOne()
	if err != nil {
		return fmt.Errorf("InOne: %w", err)
	}

	sortErrors := 0
	for i := 1; i < len(items); i++ {
		if string(items[i-1].Key) >= string(items[i].Key) {
			fmt.Printf("sortedness violation at %d: %q >= %q\n", i, items[i-1].Key, items[i].Key)
			sortErrors++
		}
	}

	bloomErrors := 0
	for _, it := range items {
		if !it.Live() {
			continue
		}
		if _, _, ok, err := s.Get(it.Key); err != nil {
			return fmt.Errorf("Get(%q): %w", it.Key, err)
		} else if !ok {
			fmt.Printf("bloom/lookup mismatch: %q present in InOne but absent from Get\n", it.Key)
			bloomErrors++
		}
	}

	fmt.Printf("entries checked: %d\n", len(items))
	fmt.Printf("sortedness violations: %d\n", sortErrors)
	fmt.Printf("bloom/lookup mismatches: %d\n", bloomErrors)
	if sortErrors+bloomErrors > 0 {
		return fmt.Errorf("verify found %d issue(s)", sortErrors+bloomErrors)
	}
	fmt.Println("OK")
	return nil
}
