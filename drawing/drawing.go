/*
Package drawing implements drawing collaborators for BACI programs.

A Recorder keeps a log of the drawing commands of a run, a Canvas rasterizes
lines into a grid of characters, suitable for terminal output. Both implement
runtime.Drawer.

----------------------------------------------------------------------

BSD License

Copyright (c) 2017-21, Norbert Pillmayer

All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions
are met:

1. Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.

2. Redistributions in binary form must reproduce the above copyright
notice, this list of conditions and the following disclaimer in the
documentation and/or other materials provided with the distribution.

3. Neither the name of this software or the names of its contributors
may be used to endorse or promote products derived from this software
without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE. */
package drawing

import (
	"fmt"
	"io"
	"strings"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.drawing'.
func tracer() tracing.Trace {
	return tracing.Select("baci.drawing")
}

// --- Recorder ----------------------------------------------------------------

// Recorder records drawing commands in order of execution.
type Recorder struct {
	cmds *arraylist.List
}

var _ runtime.Drawer = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{cmds: arraylist.New()}
}

// Draw is part of interface runtime.Drawer.
func (r *Recorder) Draw(cmd runtime.DrawCommand) error {
	r.cmds.Add(cmd)
	return nil
}

// Commands returns the recorded commands.
func (r *Recorder) Commands() []runtime.DrawCommand {
	cmds := make([]runtime.DrawCommand, 0, r.cmds.Size())
	r.cmds.Each(func(_ int, v interface{}) {
		cmds = append(cmds, v.(runtime.DrawCommand))
	})
	return cmds
}

// Reset forgets all recorded commands.
func (r *Recorder) Reset() {
	r.cmds.Clear()
}

// --- Canvas ------------------------------------------------------------------

// Palette maps colors 0…9 to the characters used to plot them.
const Palette = "#*+o@%&=x."

// Canvas is a character raster. Points outside of the canvas are clipped.
type Canvas struct {
	width, height int
	cells         [][]byte
	color         int64
}

var _ runtime.Drawer = (*Canvas)(nil)

// NewCanvas creates a blank canvas. Width and height must be positive.
func NewCanvas(width, height int) *Canvas {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c := &Canvas{width: width, height: height}
	c.cells = make([][]byte, height)
	for y := range c.cells {
		c.cells[y] = make([]byte, width)
	}
	c.clear()
	return c
}

// Draw is part of interface runtime.Drawer. Setting a color outside of the
// palette is an error.
func (c *Canvas) Draw(cmd runtime.DrawCommand) error {
	switch cmd.Kind {
	case runtime.CmdClear:
		c.clear()
	case runtime.CmdColor:
		if cmd.Color < 0 || cmd.Color >= int64(len(Palette)) {
			return fmt.Errorf("color %d outside of palette 0…%d", cmd.Color, len(Palette)-1)
		}
		c.color = cmd.Color
	case runtime.CmdLine:
		c.line(cmd.X1, cmd.Y1, cmd.X2, cmd.Y2)
	default:
		return fmt.Errorf("unknown drawing command %d", cmd.Kind)
	}
	return nil
}

func (c *Canvas) clear() {
	for _, row := range c.cells {
		for x := range row {
			row[x] = ' '
		}
	}
}

// line plots a line using Bresenham's algorithm.
func (c *Canvas) line(x1, y1, x2, y2 int64) {
	tracer().Debugf("line (%d,%d)-(%d,%d)", x1, y1, x2, y2)
	dx, dy := abs(x2-x1), -abs(y2-y1)
	sx, sy := int64(1), int64(1)
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	e := dx + dy
	for {
		c.plot(x1, y1)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x1 += sx
		}
		if e2 <= dx {
			e += dx
			y1 += sy
		}
	}
}

func (c *Canvas) plot(x, y int64) {
	if x < 0 || y < 0 || x >= int64(c.width) || y >= int64(c.height) {
		return
	}
	c.cells[y][x] = Palette[c.color]
}

// At returns the character at position (x, y), or 0 outside of the canvas.
func (c *Canvas) At(x, y int) byte {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return 0
	}
	return c.cells[y][x]
}

// String returns the canvas as lines of text, with trailing blanks removed.
func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(strings.TrimRight(string(row), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Render writes the canvas to w.
func (c *Canvas) Render(w io.Writer) error {
	_, err := io.WriteString(w, c.String())
	return err
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
