package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// Baselines in pixels for the title and the first small line.
const (
	titleBaseline = 14
	lineBaseline  = 27
	lineHeight    = 12
)

// OLED drives a 128x64 SSD1306 over I²C. Frames identical to the last one
// drawn are skipped so rendering every tick costs no bus traffic.
type OLED struct {
	dev   *ssd1306.Dev
	last  Frame
	drawn bool
}

// NewOLED initialises the panel on bus.
func NewOLED(bus i2c.Bus) (*OLED, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("init ssd1306: %w", err)
	}
	return &OLED{dev: dev}, nil
}

// Render draws v if its layout changed since the last call.
func (o *OLED) Render(v logic.View) error {
	f := Layout(v)
	if o.drawn && f.Equal(o.last) {
		return nil
	}

	img := Draw(f, o.dev.Bounds())
	if err := o.dev.Draw(img.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	o.last = f
	o.drawn = true
	return nil
}

// Close blanks the panel.
func (o *OLED) Close() error {
	return o.dev.Halt()
}

// Draw rasterises f into a 1-bit image of the given bounds.
func Draw(f Frame, bounds image.Rectangle) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: inconsolata.Bold8x16,
		Dot:  fixed.P(0, titleBaseline),
	}
	d.DrawString(f.Title)

	d.Face = basicfont.Face7x13
	for i, line := range f.Lines {
		d.Dot = fixed.P(0, lineBaseline+i*lineHeight)
		d.DrawString(line)
	}
	return img
}
