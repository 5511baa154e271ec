// Package visual implements the optional live debug panel opened by the
// -visual flag: a window showing per-core registers, the top of each
// stack, and memory-controller/bus state, refreshed once per host frame.
// It keeps the pixelgl.Window-plus-text.Text-regions shape of a typical
// emulator debug overlay, but drops the game framebuffer entirely, since a
// JOP core has no video output of its own: the whole window is the debug
// panel.
package visual

import (
	"fmt"
	"log"
	"strings"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/pixelgl"
	"github.com/faiface/pixel/text"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/basicfont"

	"jop/jop"
)

const (
	panelW float64 = 720
	panelH float64 = 480

	screenPosX float64 = 600
	screenPosY float64 = 400

	stackRows = 8
)

// Panel is the live debug window. One Panel serves the whole cluster;
// per-core sections are stacked vertically.
type Panel struct {
	window *pixelgl.Window

	atlas    *text.Atlas
	regText  *text.Text
	stackTxt *text.Text
	busText  *text.Text
}

// NewPanel opens the debug window. Must be called on the main thread
// (mainthread.Call), matching pixelgl's requirement.
func NewPanel() *Panel {
	config := pixelgl.WindowConfig{
		Title:    "JOP cluster debug panel",
		Bounds:   pixel.R(0, 0, panelW, panelH),
		Position: pixel.V(screenPosX, screenPosY),
		VSync:    true,
	}
	window, err := pixelgl.NewWindow(config)
	if err != nil {
		log.Fatal("visual: unable to create debug window: ", err)
	}

	atlas := text.NewAtlas(basicfont.Face7x13, text.ASCII)
	return &Panel{
		window:   window,
		atlas:    atlas,
		regText:  text.New(pixel.V(8, panelH-20), atlas),
		stackTxt: text.New(pixel.V(8, panelH-200), atlas),
		busText:  text.New(pixel.V(8, panelH-360), atlas),
	}
}

// Closed reports whether the user has asked to close the window.
func (p *Panel) Closed() bool { return p.window.Closed() }

// Render redraws every section from the cluster's current state and
// presents the frame.
func (p *Panel) Render(cluster *jop.Cluster) {
	p.window.Clear(colornames.Black)

	p.regText.Clear()
	p.stackTxt.Clear()
	p.busText.Clear()

	fmt.Fprintf(p.regText, "cycle %d\n\n", cluster.Cycle())
	for i, core := range cluster.Cores {
		pc, a, b, sp, jpc := core.ReadDebug()
		halted := ""
		if core.Halted() {
			halted = " HALTED"
		}
		fmt.Fprintf(p.regText, "core %d%s  pc=%#04x jpc=%#06x sp=%d\n  A=%#08x B=%#08x\n",
			i, halted, pc, jpc, sp, a, b)
	}

	var stack strings.Builder
	for _, core := range cluster.Cores {
		_, _, _, sp, _ := core.ReadDebug()
		fmt.Fprintf(&stack, "sp=%d: ", sp)
		for i := 0; i < stackRows; i++ {
			fmt.Fprintf(&stack, "%#08x ", core.RAMAt(sp-i))
		}
		stack.WriteByte('\n')
	}
	p.stackTxt.WriteString(stack.String())

	var bus strings.Builder
	for i, core := range cluster.Cores {
		fmt.Fprintf(&bus, "core %d mc=%s exc=%s\n", i, core.Mem.State(), core.Mem.LastException())
	}
	p.busText.WriteString(bus.String())

	p.regText.Draw(p.window, pixel.IM)
	p.stackTxt.Draw(p.window, pixel.IM)
	p.busText.Draw(p.window, pixel.IM)

	p.window.Update()
}
