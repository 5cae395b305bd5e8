package pool

import "testing"

func TestFloat32SliceRoundTrip(t *testing.T) {
	origConfig := globalConfig
	defer Configure(origConfig)
	Configure(Config{Enabled: true, MaxSize: 8192})

	s := GetFloat32Slice(128)
	if cap(s) < 128 {
		t.Fatalf("expected capacity >= 128, got %d", cap(s))
	}
	if len(s) != 0 {
		t.Fatalf("expected length 0, got %d", len(s))
	}
	s = append(s, 1, 2, 3)
	PutFloat32Slice(s)

	reused := GetFloat32Slice(4)
	if len(reused) != 0 {
		t.Fatalf("expected reused slice to have length 0, got %d", len(reused))
	}
}

func TestFloat32SliceDisabled(t *testing.T) {
	origConfig := globalConfig
	defer Configure(origConfig)
	Configure(Config{Enabled: false})

	s := GetFloat32Slice(16)
	if cap(s) < 16 {
		t.Fatalf("expected fresh slice with capacity 16, got %d", cap(s))
	}
}

func TestIDSliceRoundTrip(t *testing.T) {
	origConfig := globalConfig
	defer Configure(origConfig)
	Configure(Config{Enabled: true, MaxSize: 8192})

	ids := GetIDSlice()
	ids = append(ids, 1, 2, 3)
	PutIDSlice(ids)

	reused := GetIDSlice()
	if len(reused) != 0 {
		t.Fatalf("expected reused id slice to have length 0, got %d", len(reused))
	}
}

func TestByteBufferRoundTrip(t *testing.T) {
	origConfig := globalConfig
	defer Configure(origConfig)
	Configure(Config{Enabled: true, MaxSize: 8192})

	buf := GetByteBuffer()
	buf = append(buf, []byte("hello")...)
	PutByteBuffer(buf)

	oversized := make([]byte, 0, 2*1024*1024)
	PutByteBuffer(oversized) // should be dropped, not panic
}

func TestStringBuilderRoundTrip(t *testing.T) {
	b := GetStringBuilder()
	b.WriteString("paris")
	if b.String() != "paris" {
		t.Fatalf("unexpected builder contents: %q", b.String())
	}
	PutStringBuilder(b)
}
