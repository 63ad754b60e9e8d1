package canframe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassicLayout(t *testing.T) {
	f := Classic{ID: 0x275, Len: 2}
	f.Data[0], f.Data[1] = 0x64, 0x00

	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() err=%v", err)
	}
	want := []byte{0x75, 0x02, 0, 0, 2, 0, 0, 0, 0x64, 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}

	got, err := Unmarshal(b, false)
	if err != nil {
		t.Fatalf("Unmarshal() err=%v", err)
	}
	if diff := cmp.Diff(Frame(f), got); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestFDLayoutSetsFDF(t *testing.T) {
	f := FD{ID: 0x1ABCDEF, Len: 12, Flags: CANFD_BRS, IsExtended: true}
	for i := 0; i < 12; i++ {
		f.Data[i] = byte(i + 1)
	}

	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() err=%v", err)
	}
	if len(b) != FDSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), FDSize)
	}
	if b[3]&0x80 == 0 {
		t.Fatalf("EFF flag not set: % x", b[:4])
	}
	if b[4] != 12 || b[5] != CANFD_BRS|CANFD_FDF {
		t.Fatalf("len/flags = %d/%#x", b[4], b[5])
	}

	got, err := Unmarshal(b, true)
	if err != nil {
		t.Fatalf("Unmarshal() err=%v", err)
	}
	if diff := cmp.Diff(Frame(f), got); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateLimits(t *testing.T) {
	if err := (Classic{ID: 1, Len: 9}).Validate(); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("classic len 9: err=%v", err)
	}
	if err := (FD{ID: 1, Len: 65}).Validate(); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("fd len 65: err=%v", err)
	}
	if err := (Classic{ID: 0x800}).Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("std id 0x800: err=%v", err)
	}
	if err := (Classic{ID: 0x800, IsExtended: true}).Validate(); err != nil {
		t.Fatalf("ext id 0x800: err=%v", err)
	}
}

func TestModeConversion(t *testing.T) {
	c := Classic{ID: 0x10, Len: 3, Data: [8]byte{1, 2, 3}}
	fd := c.ToFD()
	if !bytes.Equal(fd.Payload(), c.Payload()) || fd.ID != c.ID {
		t.Fatalf("ToFD() = %v", fd)
	}
	back, err := fd.ToClassic()
	if err != nil {
		t.Fatalf("ToClassic() err=%v", err)
	}
	if back != c {
		t.Fatalf("ToClassic() = %v, want %v", back, c)
	}

	fd.Len = 9
	if _, err := fd.ToClassic(); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("ToClassic(len 9) err=%v", err)
	}
}

func TestPayloadFrame(t *testing.T) {
	f, err := PayloadFrame(false, 0x123, []byte{0xDE, 0xAD})
	if err != nil {
		t.Fatalf("PayloadFrame() err=%v", err)
	}
	if f.IsFD() || f.String() != "123 [2] DE AD" {
		t.Fatalf("got %q fd=%v", f.String(), f.IsFD())
	}

	f, err = PayloadFrame(true, 0x123, make([]byte, 20))
	if err != nil {
		t.Fatalf("PayloadFrame(fd) err=%v", err)
	}
	if !f.IsFD() || len(f.Payload()) != 20 {
		t.Fatalf("got %v", f)
	}

	if _, err := PayloadFrame(false, 0x123, make([]byte, 9)); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("oversize classic err=%v", err)
	}
	if _, err := PayloadFrame(true, 0x123, make([]byte, 65)); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("oversize fd err=%v", err)
	}
}

func TestUnmarshalShort(t *testing.T) {
	if _, err := Unmarshal(make([]byte, 15), false); err == nil {
		t.Fatalf("expected error for short classic frame")
	}
	if _, err := Unmarshal(make([]byte, 71), true); err == nil {
		t.Fatalf("expected error for short fd frame")
	}
}

func TestWireID(t *testing.T) {
	tests := []struct {
		id, want uint32
	}{
		{0x123, 0x123},
		{CAN_SFF_MASK, CAN_SFF_MASK},
		{0x800, 0x800 | CAN_EFF_FLAG},
		{0x18DAF110, 0x18DAF110 | CAN_EFF_FLAG},
	}
	for _, tt := range tests {
		if got := WireID(tt.id); got != tt.want {
			t.Errorf("WireID(%#x) = %#x, want %#x", tt.id, got, tt.want)
		}
	}
}
