package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/editor"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/mode"
	"github.com/AnatoleLucet/forms/internal/session"
	"github.com/AnatoleLucet/forms/internal/widget"
)

var (
	ErrUnmet     = errors.New("scenario: expectation not met")
	ErrNoEditor  = errors.New("scenario: no editor mounted")
	ErrNoListing = errors.New("scenario: host cannot list its rows")
)

// Host is a host a scenario can drive.
type Host interface {
	host.Host
	EmitOptions(options map[string]any, settings host.Settings)
	EmitRecords(rows []*host.Row)
	EditOptions()
}

type lister interface {
	Records(ctx context.Context) ([]*host.Row, error)
}

// Report is what a replay did.
type Report struct {
	Steps int
	// writes sent to the table, failed ones included
	Writes     []session.Write
	SaveErrors []*session.SaveError
	Mode       mode.Mode
}

type replayer struct {
	h Host
	w *widget.Widget
}

// Replay runs sc against h. Every step is settled before the next one: its
// loop turns ran and its writes reached the table.
func Replay(ctx context.Context, sc *Scenario, h Host, cfg config.Config, opts ...widget.Option) (*Report, error) {
	if sc.WidgetURL != "" {
		cfg.WidgetURL = sc.WidgetURL
	}

	for _, row := range sc.Seed {
		if _, err := h.Table().Create(ctx, seedFields(row)); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	report := &Report{}

	var mu sync.Mutex
	opts = append(slices.Clip(opts), widget.OnWrite(func(write session.Write) {
		mu.Lock()
		defer mu.Unlock()
		report.Writes = append(report.Writes, write)
	}))

	w, err := widget.New(h, cfg, opts...)
	if err != nil {
		return nil, err
	}

	s := w.Session()
	s.SaveError.AddListener(func(err *session.SaveError) {
		if err != nil {
			report.SaveErrors = append(report.SaveErrors, err)
		}
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := s.Writer.Run(context.WithoutCancel(ctx)); err != nil {
			glog.Warningf("[scenario]writer: %v", err)
		}
	}()
	defer func() {
		w.Close()
		<-writerDone
	}()

	if err := w.Start(); err != nil {
		return nil, err
	}

	r := &replayer{h: h, w: w}
	for i, step := range sc.Steps {
		glog.V(1).Infof("[scenario]%s step %d", sc.Name, i+1)

		if err := r.run(ctx, step); err != nil {
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := w.Settle(ctx); err != nil {
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Expect != nil {
			if err := r.check(ctx, step.Expect); err != nil {
				return report, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		report.Steps++
	}

	report.Mode = w.Mode()
	return report, nil
}

func seedFields(row host.Row) host.Fields {
	fields := host.Fields{"Name": row.Name, "Link": row.Link, "Form": row.Form}
	if row.FormJson != nil {
		fields["FormJson"] = *row.FormJson
	}
	return fields
}

func (r *replayer) editor() (*editorHandle, error) {
	e := r.w.Editor().Get()
	if e == nil {
		return nil, ErrNoEditor
	}
	return &editorHandle{e}, nil
}

func (r *replayer) run(ctx context.Context, step Step) error {
	switch {
	case step.Options != nil:
		r.h.EmitOptions(nil, *step.Options)

	case step.Records != nil:
		r.h.EmitRecords(step.Records)

	case step.Push:
		l, ok := r.h.Table().(lister)
		if !ok {
			return ErrNoListing
		}
		rows, err := l.Records(ctx)
		if err != nil {
			return err
		}
		r.h.EmitRecords(rows)

	case step.Record != 0:
		return r.h.SetCursor(ctx, step.Record)

	case step.EditOptions:
		r.h.EditOptions()

	case step.Edit != nil:
		e, err := r.editor()
		if err != nil {
			return err
		}
		return e.apply(step.Edit)

	case step.Tab != "":
		e, err := r.editor()
		if err != nil {
			return err
		}
		return e.Tabs.Request(step.Tab)

	case step.Select != 0:
		e, err := r.editor()
		if err != nil {
			return err
		}
		return e.Select(step.Select)

	case step.Create:
		e, err := r.editor()
		if err != nil {
			return err
		}
		return e.CreateForm(nil)
	}
	return nil
}

func (r *replayer) check(ctx context.Context, want *Expect) error {
	if want.Mode != "" && r.w.Mode() != want.Mode {
		return fmt.Errorf("%w: mode %s, want %s", ErrUnmet, r.w.Mode(), want.Mode)
	}

	if want.Row != 0 {
		var got host.RowID
		if row := r.w.Session().CurrentRow.Get(); row != nil {
			got = row.ID
		}
		if got != want.Row {
			return fmt.Errorf("%w: row %d, want %d", ErrUnmet, got, want.Row)
		}
	}

	if want.Failure != "" {
		err := r.w.Err()
		if err == nil || !strings.Contains(err.Error(), want.Failure) {
			return fmt.Errorf("%w: failure %v, want %q", ErrUnmet, err, want.Failure)
		}
	}

	doc, rendered := r.documents()

	if want.Keys != nil {
		if got := doc.Keys(); !slices.Equal(got, want.Keys) {
			return fmt.Errorf("%w: keys %v, want %v", ErrUnmet, got, want.Keys)
		}
	}
	if want.Rendered != nil {
		if got := rendered.Keys(); !slices.Equal(got, want.Rendered) {
			return fmt.Errorf("%w: rendered %v, want %v", ErrUnmet, got, want.Rendered)
		}
	}

	if want.Tab != "" {
		e, err := r.editor()
		if err != nil {
			return err
		}
		if got := e.Tabs.Current().Get(); got != want.Tab {
			return fmt.Errorf("%w: tab %s, want %s", ErrUnmet, got, want.Tab)
		}
	}

	if want.Stored != nil {
		return r.checkStored(ctx, want.Stored)
	}
	return nil
}

func (r *replayer) checkStored(ctx context.Context, want map[host.RowID][]string) error {
	l, ok := r.h.Table().(lister)
	if !ok {
		return ErrNoListing
	}
	rows, err := l.Records(ctx)
	if err != nil {
		return err
	}

	for id, keys := range want {
		i := slices.IndexFunc(rows, func(row *host.Row) bool { return row.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: row %d not stored", ErrUnmet, id)
		}
		if got := document.Keys(rows[i].FormJSON()); !slices.Equal(got, keys) {
			return fmt.Errorf("%w: row %d stores %v, want %v", ErrUnmet, id, got, keys)
		}
	}
	return nil
}

// documents returns the document of the mounted subtree and the one its
// renderer shows.
func (r *replayer) documents() (doc, rendered *document.Document) {
	switch r.w.Mode() {
	case mode.Editing:
		if e := r.w.Editor().Get(); e != nil {
			return e.Doc.Document().Get(), e.Doc.Renderer().CurrentDocument()
		}
	case mode.Viewing:
		if v := r.w.Viewer().Get(); v != nil {
			return v.Document().Get(), v.Renderer().CurrentDocument()
		}
	}
	return nil, nil
}

type editorHandle struct {
	*editor.Editor
}

func (e *editorHandle) apply(edit *Edit) error {
	b, ok := e.Doc.Builder().(*collab.HeadlessBuilder)
	if !ok {
		return fmt.Errorf("builder %T cannot be scripted", e.Doc.Builder())
	}

	switch {
	case edit.Add != nil:
		b.AddComponent(edit.Add)
	case edit.Remove != "":
		if !b.RemoveComponent(edit.Remove) {
			return fmt.Errorf("no component %q", edit.Remove)
		}
	case edit.Replace != "":
		b.Replace(document.Parse(edit.Replace))
	default:
		return errors.New("empty edit")
	}
	return nil
}
