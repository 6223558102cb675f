// Command bgpgrep reads MRT-format BGP archives and prints the records that
// match a compiled filter expression, in the spirit of grep: a pipeline of
// files in, matching records out, per-file diagnostics to stderr, and a
// process exit code that reflects whether every file was read cleanly.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ubgpsuite/bgpgrep/internal/cli"
	"github.com/ubgpsuite/bgpgrep/internal/filter"
	"github.com/ubgpsuite/bgpgrep/internal/ioz"
	"github.com/ubgpsuite/bgpgrep/internal/log"
	"github.com/ubgpsuite/bgpgrep/internal/mrt"
	"github.com/ubgpsuite/bgpgrep/internal/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opt, err := cli.Parse(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpgrep: %s\n", err)
		cli.PrintUsage()
		return 2
	}

	logger, err := log.New(opt.DumpBytecode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpgrep: logger: %s\n", err)
		return 1
	}
	defer logger.Sync()

	built, err := filter.Build(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpgrep: filter: %s\n", err)
		return 1
	}
	if opt.DumpBytecode {
		fmt.Fprint(os.Stderr, built.Prog.Disassemble())
	}

	out, closeOut, err := openOutput(opt.OutputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpgrep: %s: %s\n", opt.OutputFile, err)
		return 1
	}
	defer closeOut()

	files := opt.Files
	if len(files) == 0 {
		files = []string{"-"}
	}

	ex := vm.NewExec(built.Prog, built.Tries, built.Funcs, built.Heap)

	exit := 0
	for _, name := range files {
		if err := processFile(name, opt, ex, out, logger); err != nil {
			fmt.Fprintf(os.Stderr, "bgpgrep: %s: %s\n", ioz.DisplayName(name), err)
			exit = 1
		}
	}
	return exit
}

func openOutput(name string) (io.Writer, func(), error) {
	if name == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// processFile reads one MRT archive end to end, either printing its peer
// index (-f) or running every decoded record through the compiled filter.
func processFile(name string, opt *cli.Options, ex *vm.Exec, out io.Writer, logger *zap.Logger) error {
	r, err := ioz.Open(name)
	if err != nil {
		return err
	}
	defer r.Close()

	rd := mrt.NewReader(r)
	display := ioz.DisplayName(name)

	if opt.PeerIndexOnly {
		// The peer table is always the first thing a well-formed archive
		// carries; one Next() call is enough to populate it.
		if _, err := rd.Next(); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		for i, p := range rd.Peers() {
			fmt.Fprintf(out, "%d\t%s\tAS%d\n", i, p.Addr, p.ASN)
		}
		return nil
	}

	n := 0
	for {
		rec, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("record %d: %w", n, err)
		}
		n++
		if rec.Msg == nil {
			continue
		}
		ok, err := ex.Run(rec.Msg)
		if err != nil {
			logger.Warn("filter execution error",
				zap.String("file", display), zap.Int("record", n), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if opt.HexDump {
			fmt.Fprint(out, cli.FormatHexArray(fmt.Sprintf("record_%d", n), rec.Raw))
		} else {
			fmt.Fprint(out, cli.FormatUpdateText(rec.Msg))
		}
	}
	return nil
}
