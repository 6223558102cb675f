package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxTokenLen is the token-grammar's maximum token length (spec §6).
const maxTokenLen = 256

// readTokenFile reads name under the whitespace-token grammar: tokens
// separated by whitespace, '#' begins a line comment, and backslash escapes
// \n \v \t \r \# \\ and \<space>.
func readTokenFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, &ErrUsage{Msg: err.Error()}
	}
	defer f.Close()

	var toks []string
	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		lineToks, err := scanTokenLine(line)
		if err != nil {
			return nil, &ErrUsage{Msg: fmt.Sprintf("%s:%d: %s", name, lineno, err)}
		}
		toks = append(toks, lineToks...)
	}
	if err := sc.Err(); err != nil {
		return nil, &ErrUsage{Msg: err.Error()}
	}
	return toks, nil
}

func scanTokenLine(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	flush := func() error {
		if cur.Len() == 0 {
			return nil
		}
		if cur.Len() > maxTokenLen {
			return fmt.Errorf("token exceeds %d bytes", maxTokenLen)
		}
		toks = append(toks, cur.String())
		cur.Reset()
		return nil
	}

	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '#':
			i = len(line) // rest of line is a comment
		case c == '\\' && i+1 < len(line):
			switch esc := line[i+1]; esc {
			case 'n':
				cur.WriteByte('\n')
			case 'v':
				cur.WriteByte('\v')
			case 't':
				cur.WriteByte('\t')
			case 'r':
				cur.WriteByte('\r')
			case '#', '\\', ' ':
				cur.WriteByte(esc)
			default:
				return nil, fmt.Errorf("unknown escape \\%c", esc)
			}
			i += 2
		case c == ' ' || c == '\t':
			if err := flush(); err != nil {
				return nil, err
			}
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return toks, nil
}

func readTokenFileUint32(name string) ([]uint32, error) {
	toks, err := readTokenFile(name)
	if err != nil {
		return nil, err
	}
	nums := make([]uint32, 0, len(toks))
	for _, t := range toks {
		n, err := strconv.ParseUint(t, 10, 32)
		if err != nil {
			return nil, &ErrUsage{Msg: "bad AS number in " + name + ": " + t}
		}
		nums = append(nums, uint32(n))
	}
	return nums, nil
}
