package vm

// PeerLister is implemented by the filter builder's peer-AS/peer-address
// configuration; the two accumulate intrinsics read from it rather than
// bytecode, per spec §4.8 ("peer-AS and peer-addr lists are held outside
// bytecode ... the two accumulate intrinsics simply push their contents").
type PeerLister interface {
	PeerASes() []WideAS
	PeerAddrs() []NetAddr
}

// AccumulateASes returns a NativeFunc (for CALL) that pushes every
// configured peer AS onto the stack, for a following ASCONTAINS K_PEER_AS.
func AccumulateASes(p PeerLister) NativeFunc {
	return func(e *Exec) error {
		for _, as := range p.PeerASes() {
			if err := e.push(ASCell(as)); err != nil {
				return err
			}
		}
		return nil
	}
}

// AccumulateAddrs mirrors AccumulateASes for peer addresses.
func AccumulateAddrs(p PeerLister) NativeFunc {
	return func(e *Exec) error {
		for _, a := range p.PeerAddrs() {
			if err := e.push(AddrCell(a)); err != nil {
				return err
			}
		}
		return nil
	}
}

// FindLoops is the find-loops intrinsic (spec §4.7): it materializes the
// real AS path into a temporary heap array and scans it for a repeated AS,
// ignoring AS_TRANS and immediate prepends. The scan starts at i=2 and
// tests i<n-1, so the last AS in the path is never checked as a repeat —
// this is spec's documented open question, preserved verbatim for
// compatibility with existing filter behavior rather than "fixed", since
// nothing in the spec asks for the fix and existing bytecode dumps may
// depend on the quirk.
func FindLoops(e *Exec) error {
	if err := e.requireUpdate(); err != nil {
		return err
	}
	it := e.msg.OpenASPath(ASPathReal)
	var path []WideAS
	for {
		a, ok := it.Next()
		if !ok {
			break
		}
		path = append(path, a)
	}
	it.Close()

	n := len(path)
	if n < 3 {
		return e.push(BoolCell(false))
	}

	off, err := e.Heap.Alloc(n*8, ZoneTemp)
	if err != nil {
		return e.abort(ErrOutOfMemory)
	}
	buf := e.Heap.Bytes(off, n*8)
	for i, as := range path {
		v := uint64(as)
		for b := 7; b >= 0; b-- {
			buf[i*8+b] = byte(v)
			v >>= 8
		}
	}

	found := false
	for i := 2; i < n-1 && !found; i++ {
		if path[i] == path[i-1] {
			continue // prepend, not a loop
		}
		if path[i] == ASTrans {
			continue
		}
		for j := 0; j < i-1; j++ {
			if path[j] == path[i] {
				found = true
				break
			}
		}
	}

	if err := e.Heap.Return(n * 8); err != nil {
		return e.abort(ErrOutOfMemory)
	}
	return e.push(BoolCell(found))
}
