package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/bosley/lyrical/segments"
	"github.com/bosley/lyrical/session"
	"github.com/bosley/lyrical/srt"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter echoes new progress lines of a session as they arrive.
type progressPrinter struct {
	out io.Writer

	mu      sync.Mutex
	printed int
}

func (p *progressPrinter) flush(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(snap.Progress) < p.printed {
		// a new job cleared the log
		p.printed = 0
	}
	for _, line := range snap.Progress[p.printed:] {
		fmt.Fprintln(p.out, line)
	}
	p.printed = len(snap.Progress)
}

// follow prints until the returned stop func is called; stop prints
// whatever arrived last.
func (p *progressPrinter) follow(sess *session.Session) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			changed := sess.Changed()
			p.flush(sess.Snapshot())
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
		p.flush(sess.Snapshot())
	}
}

func segmentRows(segs []segments.Segment) [][]string {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, []string{
			strconv.Itoa(s.ID),
			srt.Timestamp(s.Start),
			srt.Timestamp(s.End),
			s.Text,
			s.Transliteration,
		})
	}
	return rows
}

func printResult(out io.Writer, snap session.Snapshot, segs []segments.Segment) {
	if snap.View() == session.ViewSegments && len(segs) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"ID", "Start", "End", "Text", "Transliteration"},
			segmentRows(segs),
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		return
	}
	fmt.Fprintln(out, snap.Result.FullText)
	if snap.Result.Transliteration != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, snap.Result.Transliteration)
	}
}
