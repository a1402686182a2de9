package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/pterm/pterm"
)

// threadTable renders the threads of a snapshot.
func threadTable(snap runtime.Snapshot) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Threads after %d steps", snap.Steps))
	t.AppendHeader(table.Row{"ID", "Name", "State", "Waiting for", "PC", "Line", "Depth", "Fault"})
	for _, th := range snap.Threads {
		fault := ""
		if th.Fault != nil {
			fault = th.Fault.Kind().String()
		}
		t.AppendRow(table.Row{th.ID, th.Name, th.State, th.Reason, th.PC, th.Line, th.Depth, fault})
	}
	return t.Render()
}

// variableTable renders the global variables and the locals of every
// thread's innermost frame.
func variableTable(snap runtime.Snapshot) string {
	t := table.NewWriter()
	t.SetTitle("Variables")
	t.AppendHeader(table.Row{"Scope", "Name", "Type", "Value"})
	for _, v := range snap.Globals {
		t.AppendRow(table.Row{"global", v.Name, v.Type, formatVar(v)})
	}
	for _, th := range snap.Threads {
		scope := fmt.Sprintf("%s (%d)", th.Name, th.ID)
		for _, v := range th.Locals {
			t.AppendRow(table.Row{scope, v.Name, v.Type, formatVar(v)})
		}
	}
	return t.Render()
}

// syncTable renders semaphores, monitors and condition variables with their
// queues.
func syncTable(snap runtime.Snapshot) string {
	t := table.NewWriter()
	t.SetTitle("Synchronization objects")
	t.AppendHeader(table.Row{"Object", "Kind", "Value / Owner", "Queue"})
	for _, s := range snap.Semaphores {
		kind := "semaphore"
		if s.Binary {
			kind = "binarysem"
		}
		t.AppendRow(table.Row{s.Name, kind, s.Count, formatIDs(s.Waiters)})
	}
	for _, m := range snap.Monitors {
		owner := "free"
		if m.Owner >= 0 {
			owner = fmt.Sprintf("thread %d", m.Owner)
		}
		queue := formatIDs(m.Entry)
		if len(m.Resume) > 0 {
			queue = fmt.Sprintf("%s, resume %s", queue, formatIDs(m.Resume))
		}
		t.AppendRow(table.Row{m.Name, "monitor", owner, queue})
		for _, c := range m.Conditions {
			t.AppendRow(table.Row{m.Name + "." + c.Name, "condition", "", formatIDs(c.Waiters)})
		}
	}
	return t.Render()
}

func formatVar(v runtime.VarInfo) string {
	if v.Values == nil {
		return formatValue(v.Type, v.Value)
	}
	elems := make([]string, len(v.Values))
	for i, x := range v.Values {
		elems[i] = formatValue(v.Type, x)
	}
	return "[" + strings.Join(elems, " ") + "]"
}

func formatValue(typ program.Type, v int64) string {
	if typ == program.Bool {
		return fmt.Sprintf("%v", v != 0)
	}
	return fmt.Sprintf("%d", v)
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(s, " ")
}

// structure lists the threads, routines and synchronization objects of a
// program as a leveled list, to be displayed as a tree.
func structure(prog *program.Program) pterm.LeveledList {
	ll := pterm.LeveledList{}
	entry := func(e program.Entry, kind string) {
		ll = append(ll, pterm.LeveledListItem{
			Level: 1,
			Text:  fmt.Sprintf("%s %s @%d (frame %d)", kind, e.Name, e.Entry, e.FrameSize),
		})
		for _, l := range e.Locals {
			ll = append(ll, pterm.LeveledListItem{Level: 2, Text: fmt.Sprintf("%s %s", l.Type, l.Name)})
		}
	}
	ll = append(ll, pterm.LeveledListItem{Level: 0, Text: "threads"})
	entry(prog.Main(), "main")
	for _, e := range prog.Processes() {
		entry(e, "process")
	}
	if routines := prog.Routines(); len(routines) > 0 {
		ll = append(ll, pterm.LeveledListItem{Level: 0, Text: "routines"})
		for _, e := range routines {
			entry(e, e.Result.String())
		}
	}
	sems, mons := prog.Semaphores(), prog.Monitors()
	if len(sems)+len(mons) > 0 {
		ll = append(ll, pterm.LeveledListItem{Level: 0, Text: "synchronization"})
		for _, s := range sems {
			ll = append(ll, pterm.LeveledListItem{Level: 1, Text: fmt.Sprintf("semaphore %s = %d", s.Name, s.Initial)})
		}
		conds := prog.Conditions()
		for _, m := range mons {
			ll = append(ll, pterm.LeveledListItem{Level: 1, Text: "monitor " + m.Name})
			for _, c := range m.Conditions {
				ll = append(ll, pterm.LeveledListItem{Level: 2, Text: "condition " + conds[c].Name})
			}
		}
	}
	return ll
}

// printListing writes the disassembly of prog to w. Write errors are
// reported, and false is returned.
func printListing(w io.Writer, prog *program.Program) bool {
	if err := prog.Disassemble(w); err != nil {
		reportError(fmt.Errorf("cannot write program listing: %w", err))
		return false
	}
	return true
}

func printStructure(prog *program.Program) {
	root := pterm.NewTreeFromLeveledList(structure(prog))
	pterm.DefaultTree.WithRoot(root).Render()
}
