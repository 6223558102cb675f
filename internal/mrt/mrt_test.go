package mrt

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func mrtRecord(typ, subtype uint16, body []byte) []byte {
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], 0)
	binary.BigEndian.PutUint16(hdr[4:6], typ)
	binary.BigEndian.PutUint16(hdr[6:8], subtype)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
	return append(hdr[:], body...)
}

func peerIndexTableBody() []byte {
	var b []byte
	b = append(b, 1, 2, 3, 4) // collector BGP ID
	b = append(b, 0, 0)      // view name length = 0
	b = append(b, 0, 1)      // peer count = 1
	b = append(b, 0x02)      // peer type: AS4, IPv4
	b = append(b, 9, 9, 9, 9) // peer BGP ID
	b = append(b, 192, 0, 2, 1) // peer IPv4 address
	b = append(b, 0, 0, 0xfd, 0xe8) // AS 65000
	return b
}

func TestReaderSkipsPeerIndexTable(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(mrtRecord(TypeTableDumpV2, SubtypePeerIndexTable, peerIndexTableBody()))

	rd := NewReader(&buf)
	_, err := rd.Next()
	if err != io.EOF {
		t.Fatalf("Next() after only a PEER_INDEX_TABLE = %v, want io.EOF", err)
	}
	peers := rd.Peers()
	if len(peers) != 1 || peers[0].ASN != 65000 {
		t.Fatalf("Peers() = %+v, want one peer with ASN 65000", peers)
	}
}

func TestReaderUnknownRecordPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(mrtRecord(99, 0, []byte{1, 2, 3}))

	rd := NewReader(&buf)
	rec, err := rd.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Header.Type != 99 {
		t.Fatalf("Header.Type = %d, want 99", rec.Header.Type)
	}
}
