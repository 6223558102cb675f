// Package cli implements bgpgrep's command-line surface: option parsing,
// usage text, and the whitespace-token grammar used to read filter
// arguments from a file (spec §6).
//
// The option grammar pairs a lowercase flag taking a single value with an
// uppercase flag taking either a file of values or a negated predicate,
// depending on the option; no third-party flag library in the retrieval
// pack (pflag, cobra, or otherwise) expresses that per-option pairing
// cleanly, so — per this repo's rule of documenting every stdlib-only
// choice — the scanner here is hand-rolled, in the same spirit as the
// teacher's own hand-rolled byteset/util.go parsing helpers.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ubgpsuite/bgpgrep/internal/attrset"
)

// LoopMode selects how the -l/-L flags affect the loop-detection guard.
type LoopMode uint8

const (
	LoopIgnore LoopMode = iota
	LoopKeepOnly
	LoopDiscard
)

// PrefixOp names which relational prefix test -e/-s/-u/-r selects.
type PrefixOp uint8

const (
	PrefixNone PrefixOp = iota
	PrefixExact
	PrefixSubnet
	PrefixSupernet
	PrefixRelated
)

// PathTerm is one -p/-P occurrence.
type PathTerm struct {
	Expr   string
	Negate bool
}

// CommTerm is one -m/-M occurrence.
type CommTerm struct {
	Text   string
	Negate bool
}

// Options is the fully parsed command line.
type Options struct {
	PeerAS   []uint32
	PeerAddr []string // deferred textual parse; resolved by the builder

	PrefixOp   PrefixOp
	PrefixList []string

	PathTerms []PathTerm
	CommTerms []CommTerm
	AttrCodes *attrset.Set

	Loop LoopMode

	PeerIndexOnly bool
	HexDump       bool
	DumpBytecode  bool
	OutputFile    string

	Files []string
}

// ErrUsage is returned for any command-line error; the caller should print
// the Usage text (PrintUsage) and exit non-zero.
type ErrUsage struct{ Msg string }

func (e *ErrUsage) Error() string { return e.Msg }

// Usage is bgpgrep's usage text, printed to stderr on a parse error.
const Usage = `usage: bgpgrep [options] [file ...]
  -a AS        accept only records whose peer AS is AS
  -A file      accept only records whose peer AS is listed in file
  -i addr      accept only records whose peer address is addr
  -I file      accept only records whose peer address is listed in file
  -e/-s/-u/-r prefix   prefix filter: exact/subnet/supernet/related
  -E/-S/-U/-R file     same, reading prefixes from file
  -p expr      accept iff AS path matches expr
  -P expr      accept iff AS path does not match expr
  -m comm      accept iff communities contain comm
  -M comm      accept iff communities do not contain comm
  -t code      accept iff UPDATE has attribute code (name or number)
  -T file      same, reading attribute codes from file
  -l           keep only records with an AS-path loop
  -L           discard records with an AS-path loop
  -f           print the MRT peer index only; do not filter
  -c           dump matching records as C hex arrays
  -d           print compiled bytecode to standard error
  -o file      redirect standard output to file
`

// Parse scans argv (not including argv[0]) into an Options.
func Parse(argv []string) (*Options, error) {
	opt := &Options{}
	prefixSeen := false

	takeArg := func(i *int, flag string) (string, error) {
		*i++
		if *i >= len(argv) {
			return "", &ErrUsage{Msg: fmt.Sprintf("%s requires an argument", flag)}
		}
		return argv[*i], nil
	}

	setPrefixOp := func(op PrefixOp, flag string) error {
		if prefixSeen && opt.PrefixOp != op {
			return &ErrUsage{Msg: "conflicting prefix-filter options"}
		}
		prefixSeen = true
		opt.PrefixOp = op
		return nil
	}

	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if len(a) < 2 || a[0] != '-' {
			opt.Files = append(opt.Files, a)
			continue
		}
		switch a {
		case "-a":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, &ErrUsage{Msg: "bad AS number: " + v}
			}
			opt.PeerAS = append(opt.PeerAS, uint32(n))
		case "-A":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			nums, err := readTokenFileUint32(v)
			if err != nil {
				return nil, err
			}
			opt.PeerAS = append(opt.PeerAS, nums...)
		case "-i":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			opt.PeerAddr = append(opt.PeerAddr, v)
		case "-I":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			toks, err := readTokenFile(v)
			if err != nil {
				return nil, err
			}
			opt.PeerAddr = append(opt.PeerAddr, toks...)
		case "-e", "-E", "-s", "-S", "-u", "-U", "-r", "-R":
			var op PrefixOp
			switch a[1] {
			case 'e', 'E':
				op = PrefixExact
			case 's', 'S':
				op = PrefixSubnet
			case 'u', 'U':
				op = PrefixSupernet
			case 'r', 'R':
				op = PrefixRelated
			}
			if err := setPrefixOp(op, a); err != nil {
				return nil, err
			}
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			if a[1] >= 'A' && a[1] <= 'Z' {
				toks, err := readTokenFile(v)
				if err != nil {
					return nil, err
				}
				opt.PrefixList = append(opt.PrefixList, toks...)
			} else {
				opt.PrefixList = append(opt.PrefixList, v)
			}
		case "-p", "-P":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			opt.PathTerms = append(opt.PathTerms, PathTerm{Expr: v, Negate: a == "-P"})
		case "-m", "-M":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			opt.CommTerms = append(opt.CommTerms, CommTerm{Text: v, Negate: a == "-M"})
		case "-t":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			code, err := parseAttrCode(v)
			if err != nil {
				return nil, err
			}
			opt.attrSet().Add(code)
		case "-T":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			toks, err := readTokenFile(v)
			if err != nil {
				return nil, err
			}
			for _, tok := range toks {
				code, err := parseAttrCode(tok)
				if err != nil {
					return nil, err
				}
				opt.attrSet().Add(code)
			}
		case "-l":
			opt.Loop = LoopKeepOnly
		case "-L":
			opt.Loop = LoopDiscard
		case "-f":
			opt.PeerIndexOnly = true
		case "-c":
			opt.HexDump = true
		case "-d":
			opt.DumpBytecode = true
		case "-o":
			v, err := takeArg(&i, a)
			if err != nil {
				return nil, err
			}
			opt.OutputFile = v
		default:
			return nil, &ErrUsage{Msg: "unknown option: " + a}
		}
	}
	return opt, nil
}

// attrSet lazily allocates the option's attribute-code set, so Options{}
// zero values still print and compare cleanly with a nil AttrCodes.
func (opt *Options) attrSet() *attrset.Set {
	if opt.AttrCodes == nil {
		opt.AttrCodes = attrset.New()
	}
	return opt.AttrCodes
}

func parseAttrCode(s string) (uint8, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return uint8(n), nil
	}
	if code, ok := attrNameCodes[s]; ok {
		return code, nil
	}
	return 0, &ErrUsage{Msg: "unknown attribute name: " + s}
}

var attrNameCodes = map[string]uint8{
	"ORIGIN":           1,
	"AS_PATH":          2,
	"NEXT_HOP":         3,
	"MULTI_EXIT_DISC":  4,
	"LOCAL_PREF":       5,
	"ATOMIC_AGGREGATE": 6,
	"AGGREGATOR":       7,
	"COMMUNITIES":      8,
	"MP_REACH_NLRI":    14,
	"MP_UNREACH_NLRI":  15,
	"AS4_PATH":         17,
	"AS4_AGGREGATOR":   18,
}

// PrintUsage writes the usage text to stderr.
func PrintUsage() { fmt.Fprint(os.Stderr, Usage) }
