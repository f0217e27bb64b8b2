// internal/printer/printer_test.go
package printer

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"escpos-service/internal/bitmap"
	"escpos-service/internal/command"
)

// fakeAdapter records writes and the close call in order
type fakeAdapter struct {
	mu       sync.Mutex
	calls    []string
	writes   [][]byte
	writeErr error
	closeErr error
}

func (a *fakeAdapter) complete(err error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- err
		close(ch)
	}()
	return ch
}

func (a *fakeAdapter) Open() <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "open")
	return a.complete(nil)
}

func (a *fakeAdapter) Write(data []byte) <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "write")
	a.writes = append(a.writes, append([]byte(nil), data...))
	return a.complete(a.writeErr)
}

func (a *fakeAdapter) Close() <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "close")
	return a.complete(a.closeErr)
}

func (a *fakeAdapter) snapshot() ([]string, [][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...), append([][]byte(nil), a.writes...)
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
		return nil
	}
}

// encode runs build on a fresh printer and returns the bytes of one flush
func encode(t *testing.T, build func(p *Printer), opts ...Option) []byte {
	t.Helper()
	a := &fakeAdapter{}
	p := New(a, opts...)
	build(p)
	require.NoError(t, p.Err())
	require.NoError(t, wait(t, p.Flush()))
	_, writes := a.snapshot()
	require.NotEmpty(t, writes)
	return writes[len(writes)-1]
}

func TestTextCommands(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *Printer)
		want  []byte
	}{
		{"print", func(p *Printer) { p.Print("Hi") }, []byte("Hi")},
		{"print line", func(p *Printer) { p.PrintLine("Hi") }, []byte("Hi\n")},
		{"raw", func(p *Printer) { p.Raw([]byte{0x1B, 0x40, 0xFF}) }, []byte{0x1B, 0x40, 0xFF}},
		{"line feed", func(p *Printer) { p.LineFeed() }, []byte{0x0A}},
		{"feed", func(p *Printer) { p.Feed(3) }, []byte{0x0A, 0x0A, 0x0A}},
		{"control lf", func(p *Printer) { p.Control(ControlLF) }, []byte{0x0A}},
		{"control cr", func(p *Printer) { p.Control(ControlCR) }, []byte{0x0D}},
		{"control ht", func(p *Printer) { p.Control("ht") }, []byte{0x09}},
		{"align left", func(p *Printer) { p.Align(AlignLeft) }, []byte{0x1B, 0x61, 0x00}},
		{"align center", func(p *Printer) { p.Align(AlignCenter) }, []byte{0x1B, 0x61, 0x01}},
		{"align right", func(p *Printer) { p.Align("rt") }, []byte{0x1B, 0x61, 0x02}},
		{"font a", func(p *Printer) { p.Font(FontA) }, []byte{0x1B, 0x21, 0x00}},
		{"font b", func(p *Printer) { p.Font(FontB) }, []byte{0x1B, 0x21, 0x01}},
		{"line space default", func(p *Printer) { p.LineSpace("", 0) }, []byte{0x1B, 0x32}},
		{"line space 1/8", func(p *Printer) { p.LineSpace(LineSpace1of8, 30) }, []byte{0x1B, 0x30, 30}},
		{"line spacing", func(p *Printer) { p.LineSpacing(40) }, []byte{0x1B, 0x33, 40}},
		{"margin left", func(p *Printer) { p.MarginLeft(16) }, []byte{0x1D, 0x4C, 16}},
		{"hardware select", func(p *Printer) { p.HardwareSelect() }, []byte{0x1B, 0x3D, 0x01}},
		{"cash draw 2", func(p *Printer) { p.CashDraw(2) }, []byte{0x1B, 0x70, 0x00}},
		{"cash draw 5", func(p *Printer) { p.CashDraw(5) }, []byte{0x1B, 0x70, 0x01}},
		{"encoded text", func(p *Printer) { p.WriteText("é", "CP437") }, []byte{0x82, 0x0A}},
		{"encoded raw text", func(p *Printer) { p.SetEncoding("CP437").WriteTextRaw("é", "") }, []byte{0x82}},
		{"utf-8 text", func(p *Printer) { p.WriteTextRaw("é", "") }, []byte("é")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, tt.build))
		})
	}
}

func TestStyleIsPureFunctionOfSpec(t *testing.T) {
	specs := map[string][]byte{
		"B":      {0x1B, 0x45, 0x01, 0x1B, 0x34, 0x00, 0x1B, 0x2D, 0x00},
		"I":      {0x1B, 0x45, 0x00, 0x1B, 0x34, 0x01, 0x1B, 0x2D, 0x00},
		"U2":     {0x1B, 0x45, 0x00, 0x1B, 0x34, 0x00, 0x1B, 0x2D, 0x02},
		"BIU":    {0x1B, 0x45, 0x01, 0x1B, 0x34, 0x01, 0x1B, 0x2D, 0x01},
		"IU2":    {0x1B, 0x45, 0x00, 0x1B, 0x34, 0x01, 0x1B, 0x2D, 0x02},
		"NORMAL": {0x1B, 0x45, 0x00, 0x1B, 0x34, 0x00, 0x1B, 0x2D, 0x00},
		"XYZ":    {0x1B, 0x45, 0x00, 0x1B, 0x34, 0x00, 0x1B, 0x2D, 0x00},
	}

	for spec, want := range specs {
		t.Run(spec, func(t *testing.T) {
			fresh := encode(t, func(p *Printer) { p.Style(spec) })
			assert.Equal(t, want, fresh)

			after := encode(t, func(p *Printer) { p.Style("BIU2").Flush(); p.Style(spec) })
			assert.Equal(t, want, after)
		})
	}
}

func TestSize(t *testing.T) {
	assert.Equal(t, []byte{0x1D, 0x21, 0x00}, encode(t, func(p *Printer) { p.Size(1, 1) }))
	assert.Equal(t, []byte{0x1D, 0x21, 0x01, 0x1B, 0x21, 0x10}, encode(t, func(p *Printer) { p.Size(2, 2) }))
	assert.Equal(t, []byte{0x1D, 0x21, 0x22}, encode(t, func(p *Printer) { p.Size(3, 3) }))
	assert.Equal(t, []byte{0x1D, 0x21, 0x10}, encode(t, func(p *Printer) { p.Size(2, 1) }))
	assert.Equal(t, []byte{0x1D, 0x21, 0x77}, encode(t, func(p *Printer) { p.Size(8, 8) }))

	for _, wh := range [][2]int{{0, 1}, {1, 0}, {9, 1}, {1, 9}, {-1, -1}} {
		p := New(&fakeAdapter{})
		p.Size(wh[0], wh[1])
		assert.ErrorIs(t, p.Err(), ErrInvalidArgument, "size %v", wh)
		assert.Equal(t, 0, p.Buffered())
	}
}

func TestInvalidArgumentLeavesBufferUntouched(t *testing.T) {
	calls := map[string]func(p *Printer){
		"align":        func(p *Printer) { p.Align("MIDDLE") },
		"font":         func(p *Printer) { p.Font("C") },
		"control":      func(p *Printer) { p.Control("FF") },
		"line space":   func(p *Printer) { p.LineSpace("1/6", 0) },
		"line space 8": func(p *Printer) { p.LineSpace(LineSpace1of8, 256) },
		"margin":       func(p *Printer) { p.MarginLeft(300) },
		"feed":         func(p *Printer) { p.Feed(-1) },
		"cash draw":    func(p *Printer) { p.CashDraw(3) },
		"charset":      func(p *Printer) { p.WriteText("x", "NOPE-1") },
		"encoding":     func(p *Printer) { p.SetEncoding("NOPE-1") },
		"barcode":      func(p *Printer) { p.Barcode("12AB", EAN13, BarcodeOptions{}) },
		"qr":           func(p *Printer) { p.QRCode("", Code2DOptions{}) },
		"raster":       func(p *Printer) { p.Raster(bitmap.New(0, 0), RasterNormal) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			a := &fakeAdapter{}
			p := New(a)
			p.Print("ok")
			before := p.Buffered()

			call(p)
			assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
			assert.ErrorIs(t, p.LastErr(), ErrInvalidArgument)
			assert.Equal(t, before, p.Buffered())

			p.Print("!")
			assert.NoError(t, p.LastErr())
			assert.Equal(t, before+1, p.Buffered())

			require.NoError(t, wait(t, p.Flush()))
			_, writes := a.snapshot()
			assert.Equal(t, [][]byte{[]byte("ok!")}, writes)
			assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
		})
	}
}

func TestRejectedCallDoesNotBlockLaterCalls(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := &fakeAdapter{}
	p := New(a, WithLogger(zap.New(core)))

	p.Print("header")
	p.Align("XY")
	assert.ErrorIs(t, p.LastErr(), ErrInvalidArgument)
	assert.Equal(t, 1, logs.FilterMessage("Printer call rejected").Len())

	p.Init()
	p.Align(AlignCenter).PrintLine("total").Cut()
	assert.NoError(t, p.LastErr())
	assert.Equal(t, 0, p.Buffered())

	require.NoError(t, wait(t, p.Close()))

	calls, writes := a.snapshot()
	assert.Equal(t, []string{"write", "write", "write", "close"}, calls)
	assert.Equal(t, [][]byte{
		append([]byte("header"), 0x1B, 0x40),
		{0x1B, 0x61, 0x01, 't', 'o', 't', 'a', 'l', 0x0A, 0x1B, 0x69},
		nil,
	}, writes)
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
}

func TestFlushSendsBytesSincePreviousFlush(t *testing.T) {
	a := &fakeAdapter{}
	p := New(a)

	p.Print("first")
	f1 := p.Flush()
	assert.Equal(t, 0, p.Buffered())
	p.Print("second").LineFeed()
	f2 := p.Flush()
	f3 := p.Flush()

	require.NoError(t, wait(t, f1))
	require.NoError(t, wait(t, f2))
	require.NoError(t, wait(t, f3))

	_, writes := a.snapshot()
	require.Len(t, writes, 3)
	assert.Equal(t, []byte("first"), writes[0])
	assert.Equal(t, []byte("second\n"), writes[1])
	assert.Empty(t, writes[2])
}

func TestInitAndCutFlushImmediately(t *testing.T) {
	a := &fakeAdapter{}
	p := New(a)

	p.Init()
	assert.Equal(t, 0, p.Buffered())
	p.PrintLine("x").Cut()
	assert.Equal(t, 0, p.Buffered())
	p.PartialCut()

	calls, writes := a.snapshot()
	assert.Equal(t, []string{"write", "write", "write"}, calls)
	assert.Equal(t, [][]byte{
		{0x1B, 0x40},
		{'x', 0x0A, 0x1B, 0x69},
		{0x1B, 0x6D},
	}, writes)

	require.NoError(t, wait(t, p.Close()))
}

func TestCloseWritesThenCloses(t *testing.T) {
	a := &fakeAdapter{}
	p := New(a)

	p.PrintLine("bye")
	err := wait(t, p.Close())
	require.NoError(t, err)
	assert.True(t, p.Closed())

	calls, writes := a.snapshot()
	assert.Equal(t, []string{"write", "close"}, calls)
	assert.Equal(t, [][]byte{[]byte("bye\n")}, writes)
}

func TestCloseReportsWriteAndCloseErrors(t *testing.T) {
	writeErr := errors.New("paper jam")
	closeErr := errors.New("release failed")
	a := &fakeAdapter{writeErr: writeErr, closeErr: closeErr}
	p := New(a)

	p.Print("x").Cut()
	err := wait(t, p.Close())
	assert.ErrorIs(t, err, writeErr)
	assert.ErrorIs(t, err, closeErr)

	calls, _ := a.snapshot()
	assert.Equal(t, []string{"write", "write", "close"}, calls)
}

func TestCloseAfterRejectedCallWritesBufferedBytes(t *testing.T) {
	a := &fakeAdapter{}
	p := New(a)

	p.Print("x").Align("UP")
	require.ErrorIs(t, p.Err(), ErrInvalidArgument)
	require.NoError(t, wait(t, p.Close()))

	calls, writes := a.snapshot()
	assert.Equal(t, []string{"write", "close"}, calls)
	assert.Equal(t, [][]byte{[]byte("x")}, writes)
}

func TestUseAfterClose(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	a := &fakeAdapter{}
	p := New(a, WithLogger(zap.New(core)))

	require.NoError(t, wait(t, p.Close()))

	p.Print("late")
	assert.ErrorIs(t, p.Err(), ErrClosed)
	assert.Equal(t, 0, p.Buffered())
	assert.ErrorIs(t, wait(t, p.Flush()), ErrClosed)
	assert.ErrorIs(t, wait(t, p.Close()), ErrClosed)

	assert.GreaterOrEqual(t, logs.FilterMessage("Printer misuse").Len(), 1)

	calls, _ := a.snapshot()
	assert.Equal(t, []string{"write", "close"}, calls)
}

func TestNoAdapter(t *testing.T) {
	p := New(nil)
	p.Print("x")
	require.NoError(t, p.Err())

	assert.ErrorIs(t, wait(t, p.Flush()), ErrNoAdapter)
	assert.ErrorIs(t, p.Err(), ErrNoAdapter)
}

func TestBarcode(t *testing.T) {
	t.Run("nul terminated", func(t *testing.T) {
		got := encode(t, func(p *Printer) { p.Barcode("2121217114234", CODE39, BarcodeOptions{}) })
		want := append([]byte{0x1D, 0x6B, 0x04}, []byte("2121217114234")...)
		assert.Equal(t, append(want, 0x00), got)
	})

	t.Run("zero height leaves height unset", func(t *testing.T) {
		got := encode(t, func(p *Printer) { p.Barcode("1234567", EAN8, BarcodeOptions{Height: 0}) })
		assert.Equal(t, append([]byte{0x1D, 0x6B, 0x03}, append([]byte("1234567"), 0x00)...), got)
	})

	t.Run("height bounds", func(t *testing.T) {
		for _, h := range []int{1, 255} {
			got := encode(t, func(p *Printer) { p.Barcode("1234567", EAN8, BarcodeOptions{Height: h}) })
			assert.Equal(t, []byte{0x1D, 0x68, byte(h)}, got[:3])
		}
	})

	t.Run("length prefixed", func(t *testing.T) {
		got := encode(t, func(p *Printer) { p.Barcode("{BABC", CODE128, BarcodeOptions{}) })
		assert.Equal(t, append([]byte{0x1D, 0x6B, 0x49, 5}, []byte("{BABC")...), got)
	})

	t.Run("options first", func(t *testing.T) {
		got := encode(t, func(p *Printer) {
			p.Barcode("123456789012", EAN13, BarcodeOptions{Width: 2, Height: 80, Position: HRIBelow, Font: HRIFontB})
		})
		want := []byte{
			0x1D, 0x77, 0x03,
			0x1D, 0x68, 80,
			0x1D, 0x48, 0x02,
			0x1D, 0x66, 0x01,
			0x1D, 0x6B, 0x02,
		}
		want = append(want, []byte("123456789012")...)
		assert.Equal(t, append(want, 0x00), got)
	})

	t.Run("qsprinter wraps in barcode mode", func(t *testing.T) {
		got := encode(t, func(p *Printer) { p.Barcode("1234567", EAN8, BarcodeOptions{}) }, WithModel(command.ModelQSPrinter))
		want := []byte{0x1D, 0x45, 0x43, 0x01, 0x1D, 0x68, 0xA2, 0x1D, 0x6B, 0x03}
		want = append(want, []byte("1234567")...)
		want = append(want, 0x00, 0x1D, 0x45, 0x43, 0x00)
		assert.Equal(t, want, got)
	})

	invalid := []struct {
		code string
		sym  Symbology
		opts BarcodeOptions
	}{
		{"12345", EAN13, BarcodeOptions{}},
		{"12345678901a", EAN13, BarcodeOptions{}},
		{"abc", CODE39, BarcodeOptions{}},
		{"123", ITF, BarcodeOptions{}},
		{"", CODE128, BarcodeOptions{}},
		{"é", CODE93, BarcodeOptions{}},
		{"1234567", "QR", BarcodeOptions{}},
		{"1234567", EAN8, BarcodeOptions{Width: 6}},
		{"1234567", EAN8, BarcodeOptions{Height: 256}},
		{"1234567", EAN8, BarcodeOptions{Height: -1}},
		{"1234567", EAN8, BarcodeOptions{Position: "LEFT"}},
	}
	for _, tt := range invalid {
		p := New(&fakeAdapter{})
		p.Barcode(tt.code, tt.sym, tt.opts)
		assert.ErrorIs(t, p.Err(), ErrInvalidArgument, "%s %q", tt.sym, tt.code)
		assert.Equal(t, 0, p.Buffered())
	}
}

func TestParseSymbology(t *testing.T) {
	sym, err := ParseSymbology("upc-a")
	require.NoError(t, err)
	assert.Equal(t, UPCA, sym)

	_, err = ParseSymbology("aztec")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestQRCodeNative(t *testing.T) {
	got := encode(t, func(p *Printer) {
		p.QRCode("hello", Code2DOptions{Level: QRLevelM})
	}, WithModel(command.ModelQSPrinter))

	want := []byte{
		0x1B, 0x23, 0x23, 0x51, 0x50, 0x49, 0x58, 12,
		0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, 3,
		0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x45, 49,
		0x1D, 0x28, 0x6B, 8, 0, 0x31, 0x50, 0x30,
	}
	want = append(want, []byte("hello")...)
	want = append(want, 0x1D, 0x28, 0x6B, 3, 0, 0x31, 0x51, 0x30)
	assert.Equal(t, want, got)

	p := New(&fakeAdapter{}, WithModel(command.ModelQSPrinter))
	p.QRCode("x", Code2DOptions{Size: 25})
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
}

func TestCode2DGeneric(t *testing.T) {
	got := encode(t, func(p *Printer) { p.QRCode("abc", Code2DOptions{}) })
	want := []byte{0x1D, 0x5A, 0x02, 0x1B, 0x5A, 3, 'L', 6, 3, 0, 'a', 'b', 'c'}
	assert.Equal(t, want, got)

	got = encode(t, func(p *Printer) { p.Code2D(PDF417, "ab", Code2DOptions{Version: 5, Level: QRLevelH, Size: 2}) })
	assert.Equal(t, []byte{0x1D, 0x5A, 0x00, 0x1B, 0x5A, 5, 'H', 2, 2, 0, 'a', 'b'}, got)
}

func TestQRBitmap(t *testing.T) {
	bm, err := QRBitmap("https://example.com", QRLevelM, 2)
	require.NoError(t, err)
	assert.Equal(t, bm.Width, bm.Height)
	assert.Zero(t, bm.Width%2)
	assert.False(t, bm.At(0, 0))
	// finder pattern corner sits just inside the quiet zone
	assert.True(t, bm.At(QRQuietZone*2, QRQuietZone*2))

	_, err = QRBitmap("x", "Z", 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	got := encode(t, func(p *Printer) { p.QRImage("x", QRLevelL, 1) })
	assert.Equal(t, []byte{0x1D, 0x76, 0x30, 0x00}, got[:4])
}

func TestImageBanded(t *testing.T) {
	bm := bitmap.New(2, 10)
	for y := 0; y < 10; y++ {
		bm.Set(0, y, true)
	}

	got := encode(t, func(p *Printer) { p.Image(bm, DensityS8) })
	want := []byte{
		0x1B, 0x33, 0x00,
		0x1B, 0x2A, 0x00, 2, 0, 0xFF, 0x00, 0x0A,
		0x1B, 0x2A, 0x00, 2, 0, 0xC0, 0x00, 0x0A,
		0x1B, 0x32,
	}
	assert.Equal(t, want, got)

	got = encode(t, func(p *Printer) { p.Image(bm, DensityD24) })
	want = []byte{
		0x1B, 0x33, 0x00,
		0x1B, 0x2A, 0x21, 2, 0, 0xFF, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x0A,
		0x1B, 0x32,
	}
	assert.Equal(t, want, got)
}

func TestRaster(t *testing.T) {
	bm := bitmap.New(9, 2)
	bm.Set(0, 0, true)
	bm.Set(8, 1, true)

	got := encode(t, func(p *Printer) { p.Raster(bm, RasterDWDH) })
	assert.Equal(t, []byte{0x1D, 0x76, 0x30, 0x03, 2, 0, 2, 0, 0x80, 0x00, 0x00, 0x80}, got)

	p := New(&fakeAdapter{})
	p.Raster(bm, "triple")
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
}

func TestPrintImageScales(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{A: 0xFF})
		}
	}

	got := encode(t, func(p *Printer) { p.PrintImage(img, 32) })
	// 32 dots wide, 8 rows tall after scaling
	assert.Equal(t, []byte{0x1D, 0x76, 0x30, 0x00, 4, 0, 8, 0}, got[:8])
	assert.Len(t, got, 8+4*8)
}
