package drawing

import (
	"context"
	"testing"

	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestCanvasLines(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.drawing")
	defer teardown()
	//
	c := NewCanvas(5, 5)
	c.Draw(runtime.DrawCommand{Kind: runtime.CmdLine, X1: 0, Y1: 0, X2: 4, Y2: 4})
	c.Draw(runtime.DrawCommand{Kind: runtime.CmdColor, Color: 1})
	c.Draw(runtime.DrawCommand{Kind: runtime.CmdLine, X1: 4, Y1: 0, X2: 0, Y2: 0})
	expect := "*****\n #\n  #\n   #\n    #\n"
	if c.String() != expect {
		t.Errorf("expected\n%s\nhave\n%s", expect, c.String())
	}
	if err := c.Draw(runtime.DrawCommand{Kind: runtime.CmdColor, Color: 10}); err == nil {
		t.Error("expected color outside of palette to be rejected")
	}
	c.Draw(runtime.DrawCommand{Kind: runtime.CmdLine, X1: -3, Y1: 2, X2: 9, Y2: 2})
	if c.At(0, 2) != '*' || c.At(4, 2) != '*' {
		t.Errorf("expected clipped line across row 2, have %q", c.String())
	}
	c.Draw(runtime.DrawCommand{Kind: runtime.CmdClear})
	if c.String() != "\n\n\n\n\n" {
		t.Errorf("expected blank canvas, have %q", c.String())
	}
}

func TestDrawingProgram(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.drawing")
	defer teardown()
	//
	result, err := compiler.Compile(`
        main {
            int i;
            clear();
            for (i = 0; i < 3; i++) { setcolor(i); line(0, i, 2, i); }
        }
    `)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder()
	res := runtime.New(result.Program, runtime.WithDrawer(rec)).Run(context.Background())
	if res.Outcome != runtime.RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	cmds := rec.Commands()
	if len(cmds) != 7 || cmds[0].Kind != runtime.CmdClear {
		t.Fatalf("expected clear plus 3 colors and 3 lines, have %v", cmds)
	}
	canvas := NewCanvas(3, 3)
	for _, cmd := range cmds {
		if err := canvas.Draw(cmd); err != nil {
			t.Fatal(err)
		}
	}
	if canvas.String() != "###\n***\n+++\n" {
		t.Errorf("unexpected canvas\n%s", canvas.String())
	}
	rec.Reset()
	if len(rec.Commands()) != 0 {
		t.Errorf("expected empty recorder after reset")
	}
}
