package composite

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/placement"
)

var sport = placement.Rule{Category: "CAMISA_SPORT", Width: 180, Height: 200, X: 248, Y: 360}

func solidBase(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func solidOverlay(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func rgbAt(img *image.RGBA, x, y int) [3]uint8 {
	i := img.PixOffset(x, y)
	return [3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

func nrgbAt(img *image.NRGBA, x, y int) [3]uint8 {
	i := img.PixOffset(x, y)
	return [3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

func TestCompositeInsideBounds(t *testing.T) {
	base := solidBase(600, 800, color.RGBA{10, 20, 30, 255})
	overlay := solidOverlay(90, 100, color.NRGBA{200, 100, 50, 255})

	out, err := Composite(base, overlay, sport)
	require.NoError(t, err)
	require.Equal(t, base.Bounds(), out.Bounds())

	resized := Resize(overlay, sport.Width, sport.Height)
	require.Equal(t, [3]uint8{10, 20, 30}, rgbAt(out, 0, 0), "pixel outside footprint must be unchanged")
	require.Equal(t, nrgbAt(resized, 0, 0), rgbAt(out, 248, 360))
	require.Equal(t, nrgbAt(resized, 179, 199), rgbAt(out, 248+179, 360+199))
	require.Equal(t, [3]uint8{10, 20, 30}, rgbAt(out, 248+180, 360+200))
	require.Equal(t, [3]uint8{10, 20, 30}, rgbAt(out, 247, 359))
}

func TestCompositeOutOfBounds(t *testing.T) {
	base := solidBase(400, 500, color.RGBA{1, 2, 3, 255})
	before := append([]byte(nil), base.Pix...)
	overlay := solidOverlay(10, 10, color.NRGBA{255, 0, 0, 255})

	out, err := Composite(base, overlay, sport)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ErrCodeBounds), "got %v", err)
	require.Nil(t, out)
	require.Equal(t, before, base.Pix, "base must not be mutated on failure")
}

func TestCompositeBoundsEdges(t *testing.T) {
	base := solidBase(100, 100, color.RGBA{0, 0, 0, 255})
	overlay := solidOverlay(4, 4, color.NRGBA{255, 255, 255, 255})

	tests := []struct {
		name    string
		rule    placement.Rule
		wantErr bool
	}{
		{"exact fit", placement.Rule{Width: 100, Height: 100}, false},
		{"touching right and bottom", placement.Rule{Width: 10, Height: 10, X: 90, Y: 90}, false},
		{"one past right", placement.Rule{Width: 10, Height: 10, X: 91, Y: 0}, true},
		{"one past bottom", placement.Rule{Width: 10, Height: 10, X: 0, Y: 91}, true},
		{"negative x", placement.Rule{Width: 10, Height: 10, X: -1, Y: 0}, true},
		{"negative y", placement.Rule{Width: 10, Height: 10, X: 0, Y: -1}, true},
		{"zero size", placement.Rule{Width: 0, Height: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Composite(base, overlay, tt.rule)
			if tt.wantErr {
				require.True(t, errs.Is(err, errs.ErrCodeBounds), "got %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCompositeAlphaThreshold(t *testing.T) {
	// Four horizontal bands with alpha 0, 1, 128 and 255.
	alphas := []uint8{0, 1, 128, 255}
	const w, h = 8, 16
	overlay := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		a := alphas[y/4]
		for x := 0; x < w; x++ {
			overlay.SetNRGBA(x, y, color.NRGBA{R: 240, G: 120, B: 60, A: a})
		}
	}
	base := solidBase(32, 32, color.RGBA{5, 6, 7, 255})
	rule := placement.Rule{Category: "T", Width: w, Height: h, X: 4, Y: 4}

	out, err := Composite(base, overlay, rule)
	require.NoError(t, err)
	resized := Resize(overlay, w, h)

	for band, a := range alphas {
		y := band*4 + 1 // interior row of the band
		for x := 0; x < w; x++ {
			ra := resized.NRGBAAt(x, y).A
			got := rgbAt(out, rule.X+x, rule.Y+y)
			if a == 0 {
				require.Zero(t, ra)
				require.Equal(t, [3]uint8{5, 6, 7}, got, "alpha 0 must keep the base pixel")
				continue
			}
			require.NotZero(t, ra)
			require.Equal(t, nrgbAt(resized, x, y), got, "alpha %d must replace, not blend", a)
			require.Equal(t, uint8(0xff), out.RGBAAt(rule.X+x, rule.Y+y).A)
		}
	}
}

func TestCompositeOverlayWithoutAlpha(t *testing.T) {
	// A JPEG overlay decodes to YCbCr, which carries no alpha channel.
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidBase(20, 20, color.RGBA{255, 0, 0, 255}), nil))
	overlay, format, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.False(t, CarriesAlpha(overlay))

	base := solidBase(50, 50, color.RGBA{9, 9, 9, 255})
	out, err := Composite(base, overlay, placement.Rule{Width: 10, Height: 10, X: 5, Y: 5})
	require.NoError(t, err)
	require.Equal(t, base.Pix, out.Pix)
}

func TestResizeIdentityPrecision(t *testing.T) {
	tests := []struct {
		alpha   uint8
		maxDiff int
	}{
		{255, 0},
		{128, 0},
		{1, 2},
	}
	for _, tt := range tests {
		src := solidOverlay(4, 4, color.NRGBA{R: 200, G: 100, B: 37, A: tt.alpha})
		got := Resize(src, 4, 4)
		i := got.PixOffset(1, 1)
		require.Equal(t, tt.alpha, got.Pix[i+3], "alpha %d must survive resize", tt.alpha)
		for c, want := range []int{200, 100, 37} {
			diff := int(got.Pix[i+c]) - want
			if diff < 0 {
				diff = -diff
			}
			require.LessOrEqual(t, diff, tt.maxDiff, "alpha %d channel %d = %d, want %d", tt.alpha, c, got.Pix[i+c], want)
		}
	}
}

func TestFlattenDropsAlpha(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	base.SetNRGBA(0, 0, color.NRGBA{100, 150, 200, 0})
	base.SetNRGBA(1, 0, color.NRGBA{1, 2, 3, 128})

	out := Flatten(base)
	require.Equal(t, color.RGBA{100, 150, 200, 255}, out.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{1, 2, 3, 255}, out.RGBAAt(1, 0))
}

func TestFlattenOffsetOrigin(t *testing.T) {
	base := solidBase(10, 10, color.RGBA{1, 1, 1, 255}).SubImage(image.Rect(2, 2, 6, 8))
	out := Flatten(base)
	require.Equal(t, image.Rect(0, 0, 4, 6), out.Bounds())
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidOverlay(3, 3, color.NRGBA{1, 2, 3, 4})))
	img, format, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.True(t, CarriesAlpha(img))

	_, _, err = Decode(bytes.NewReader([]byte("not an image")))
	require.True(t, errs.Is(err, errs.ErrCodeValidation))
}

// =============================================================================
// Property-Based Tests
// =============================================================================

func drawImage(t *rapid.T, label string, maxW, maxH int) *image.NRGBA {
	w := rapid.IntRange(1, maxW).Draw(t, label+"W")
	h := rapid.IntRange(1, maxH).Draw(t, label+"H")
	pix := rapid.SliceOfN(rapid.Byte(), w*h*4, w*h*4).Draw(t, label+"Pix")
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	return img
}

func drawRule(t *rapid.T, base image.Rectangle) placement.Rule {
	return placement.Rule{
		Category: "P",
		Width:    rapid.IntRange(1, base.Dx()+4).Draw(t, "ruleW"),
		Height:   rapid.IntRange(1, base.Dy()+4).Draw(t, "ruleH"),
		X:        rapid.IntRange(0, base.Dx()).Draw(t, "ruleX"),
		Y:        rapid.IntRange(0, base.Dy()).Draw(t, "ruleY"),
	}
}

func TestProperty_CompositeInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := drawImage(t, "base", 24, 24)
		overlay := drawImage(t, "overlay", 12, 12)
		rule := drawRule(t, base.Bounds())
		before := append([]byte(nil), base.Pix...)

		out, err := Composite(base, overlay, rule)
		if !bytes.Equal(before, base.Pix) {
			t.Fatalf("base mutated")
		}

		fits := rule.X+rule.Width <= base.Bounds().Dx() && rule.Y+rule.Height <= base.Bounds().Dy()
		if !fits {
			if !errs.Is(err, errs.ErrCodeBounds) || out != nil {
				t.Fatalf("expected BOUNDS error and nil image, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Determinism.
		again, err := Composite(base, overlay, rule)
		if err != nil || !bytes.Equal(out.Pix, again.Pix) {
			t.Fatalf("composite is not deterministic")
		}

		flat := Flatten(base)
		resized := Resize(overlay, rule.Width, rule.Height)
		footprint := image.Rect(rule.X, rule.Y, rule.X+rule.Width, rule.Y+rule.Height)
		for y := 0; y < out.Bounds().Dy(); y++ {
			for x := 0; x < out.Bounds().Dx(); x++ {
				got := out.RGBAAt(x, y)
				if !(image.Point{x, y}).In(footprint) {
					if got != flat.RGBAAt(x, y) {
						t.Fatalf("pixel (%d,%d) outside footprint changed", x, y)
					}
					continue
				}
				src := resized.NRGBAAt(x-rule.X, y-rule.Y)
				want := flat.RGBAAt(x, y)
				if src.A > 0 {
					want = color.RGBA{src.R, src.G, src.B, 0xff}
				}
				if got != want {
					t.Fatalf("pixel (%d,%d) = %v, want %v (overlay alpha %d)", x, y, got, want, src.A)
				}
			}
		}
	})
}
