package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/display/render"
)

// DefaultDrawInterval is the redraw period, 20 Hz.
const DefaultDrawInterval = 50 * time.Millisecond

// DefaultRefresh is the default collect interval.
const DefaultRefresh = time.Second

// Options configures the frame loop.
type Options struct {
	// Refresh is the collect interval.
	Refresh      time.Duration
	DrawInterval time.Duration
	Theme        ThemePreset
	ShowFPS      bool
	// Sink receives every frame in addition to the terminal, e.g. a
	// render.Recorder.
	Sink render.Sink
	Now  func() time.Time
}

type tickMsg time.Time

// Model is the bubbletea model driving the dashboard. Each draw tick renders
// a frame, presents it, records the draw time and collects when the
// collect interval has elapsed.
type Model struct {
	ctx      context.Context
	app      *app.App
	opts     Options
	zones    *zone.Manager
	term     *render.Terminal
	registry *KeyRegistry

	width, height int
	seq           uint64
	lastCollect   time.Time
	err           error
}

// NewModel creates the frame loop model for a.
func NewModel(ctx context.Context, a *app.App, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.DrawInterval <= 0 {
		opts.DrawInterval = DefaultDrawInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Theme.Name == "" {
		opts.Theme = MonitoringTheme
	}
	return Model{
		ctx:      ctx,
		app:      a,
		opts:     opts,
		zones:    zone.New(),
		term:     &render.Terminal{},
		registry: NewRegistry(a.Keys()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.DrawInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizePage()
		return m, nil

	case tickMsg:
		if err := m.frame(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, m.tick()

	case tea.KeyMsg:
		if m.app.HandleKey(msg) {
			return m, tea.Quit
		}
		m.resizePage()
		return m, nil

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			for _, p := range m.app.Panels().Shown() {
				if z := m.zones.Get(zoneID(p)); z != nil && z.InBounds(msg) {
					m.app.Select(p)
					m.resizePage()
					break
				}
			}
		}
		return m, nil
	}
	return m, nil
}

// frame runs one draw tick.
func (m *Model) frame() error {
	start := m.opts.Now()
	if m.width > 0 && m.height > 0 {
		if err := m.draw(); err != nil {
			return err
		}
		m.app.RecordFrame(m.opts.Now().Sub(start))
	}
	now := m.opts.Now()
	if m.lastCollect.IsZero() || now.Sub(m.lastCollect) >= m.opts.Refresh {
		m.app.CollectMetrics(m.ctx)
		m.lastCollect = now
	}
	return nil
}

func (m *Model) draw() error {
	text := Render(m.app, m.width, m.height, RenderOptions{
		Theme:    m.opts.Theme,
		ShowFPS:  m.opts.ShowFPS,
		Registry: m.registry,
		Mark:     m.zones.Mark,
	})
	m.seq++
	f := render.Frame{
		Seq:    m.seq,
		Width:  m.width,
		Height: m.height,
		Text:   m.zones.Scan(text),
	}
	if err := m.term.Present(f); err != nil {
		return err
	}
	if m.opts.Sink == nil {
		return nil
	}
	f.Series = FrameSeries(m.app)
	if err := m.opts.Sink.Present(f); err != nil {
		return fmt.Errorf("tui: present frame %d: %w", f.Seq, err)
	}
	return nil
}

// resizePage sets the scroll page to the selected panel's visible rows.
func (m *Model) resizePage() {
	st := newStyles(m.opts.Theme)
	for _, c := range computeGrid(m.app.Panels().Shown(), m.width, max(0, m.height-2), m.app.Selected()) {
		if c.Focused {
			_, ih := innerSize(c.W, c.H, st)
			m.app.SetPageSize(max(1, ih-1))
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.term.Presented() == 0 {
		return "starting..."
	}
	return m.term.View()
}

// Err is the error that stopped the loop, if any.
func (m Model) Err() error { return m.err }

// Close releases the mouse zone manager.
func (m Model) Close() { m.zones.Close() }

// Run drives a on the terminal until the user quits or ctx is cancelled.
func Run(ctx context.Context, a *app.App, opts Options) error {
	m := NewModel(ctx, a, opts)
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: run: %w", err)
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
