// Command tsinspect scans a transport stream file and reports the PAT/PMT
// structure and PCR presence it finds, as a lightweight sanity check on a
// capture before feeding it to tswrite.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/karimdavoodi/tstools/internal/mpegts"
)

func main() {
	path := flag.String("input", "", "TS file to inspect")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: tsinspect -input file.ts")
		os.Exit(2)
	}

	if err := run(*path); err != nil {
		slog.Error("tsinspect failed", "error", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := mpegts.NewScanner(f)
	var packets, pcrPackets int
	for sc.Scan() {
		packets++
		if sc.Packet().Header.HasPCR {
			pcrPackets++
		}
		for _, d := range sc.PSI() {
			if d.PAT != nil {
				for _, prog := range d.PAT.Programs {
					fmt.Printf("PAT: program=%d pmt_pid=%d\n", prog.ProgramNumber, prog.ProgramMapID)
				}
			}
			if d.PMT != nil {
				fmt.Printf("PMT: pcr_pid=%d streams=%d\n", d.PMT.PCRPID, len(d.PMT.ElementaryStreams))
				for _, es := range d.PMT.ElementaryStreams {
					fmt.Printf("  stream: pid=%d type=0x%02X\n", es.ElementaryPID, es.StreamType)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	fmt.Printf("total packets=%d with_pcr=%d\n", packets, pcrPackets)
	return nil
}
