package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/pipeline"
	"github.com/sdpower/ccledger/internal/types"
)

const DefaultInterval = 5 * time.Second

// ErrNotTerminal is returned when live mode is requested without a TTY.
var ErrNotTerminal = errors.New("live monitoring requires an interactive terminal (TTY)")

type Options struct {
	Pipeline   pipeline.Options
	Forecaster *calculator.Forecaster
	Interval   time.Duration
	// BlockTokenLimit scales the usage bar. Zero uses the largest block seen.
	BlockTokenLimit int64
	NoColor         bool
	Continuous      bool
	Out             io.Writer
	Now             func() time.Time
}

// Snapshot is everything the dashboard renders from one pipeline run.
type Snapshot struct {
	Taken     time.Time
	Result    *pipeline.Result
	Active    *types.BillingBlock
	BurnRates []types.BurnRateSnapshot
	Limit     int64
}

type Monitor struct {
	opts Options
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Forecaster == nil {
		opts.Forecaster = calculator.NewForecaster()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{opts: opts}
}

// Start runs the live dashboard, or prints one snapshot when not continuous.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.opts.Continuous {
		return m.RunOnce(ctx)
	}
	if f, ok := m.opts.Out.(*os.File); !ok || (!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		return ErrNotTerminal
	}

	p := tea.NewProgram(
		newModel(m),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(m.opts.Out),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// RunOnce takes a single snapshot and writes the dashboard.
func (m *Monitor) RunOnce(ctx context.Context) error {
	snap, err := m.Refresh(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(m.opts.Out, render(snap, 0, m.opts))
	return err
}

// Refresh runs the pipeline over the current files and derives the active
// block and burn rates.
func (m *Monitor) Refresh(ctx context.Context) (*Snapshot, error) {
	res, err := pipeline.Run(ctx, m.opts.Pipeline)
	if err != nil {
		return nil, err
	}
	now := m.opts.Now()

	f := *m.opts.Forecaster
	f.Now = func() time.Time { return now }

	limit := m.opts.BlockTokenLimit
	if limit <= 0 {
		limit = res.Blocks.MaxTokens()
	}
	return &Snapshot{
		Taken:     now,
		Result:    res,
		Active:    res.Blocks.Active(now),
		BurnRates: f.Snapshots(res.Daily, res.Blocks.Blocks),
		Limit:     limit,
	}, nil
}

type tickMsg time.Time

type snapshotMsg struct {
	snap *Snapshot
	err  error
}

type model struct {
	mon      *Monitor
	snap     *Snapshot
	err      error
	width    int
	quitting bool
}

func newModel(m *Monitor) model {
	return model{mon: m}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tea.WindowSize())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, m.refresh()

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.snap, m.err = msg.snap, nil
		}
		return m, tick(m.mon.opts.Interval)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'r' to retry, 'q' to quit.", m.err)
	}
	if m.snap == nil {
		return "Loading usage data..."
	}
	return render(m.snap, m.width, m.mon.opts)
}

func (m model) refresh() tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snap, err := mon.Refresh(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
