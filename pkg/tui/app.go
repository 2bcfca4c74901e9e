package tui

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/quorumlabs/raftwire/pkg/types"
)

// defaultRefreshInterval is how often the dashboard polls the node.
const defaultRefreshInterval = time.Second

// KeyEvent represents a keyboard event.
type KeyEvent struct {
	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// App is the dashboard application controller. It polls the fetcher on a
// ticker and redraws on every update, resize, or key press; 'q' or Ctrl+C
// exits.
type App struct {
	fetcher Fetcher
	screen  tcell.Screen

	stopChan chan struct{}
	keyChan  chan KeyEvent

	mu      sync.RWMutex
	running bool
	status  *types.StatusResponse
	fetchAt time.Time
	lastErr error
}

// NewApp creates a dashboard over the given fetcher.
func NewApp(fetcher Fetcher) (*App, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("tui: fetcher is required")
	}
	return &App{
		fetcher:  fetcher,
		stopChan: make(chan struct{}),
		keyChan:  make(chan KeyEvent, 10),
	}, nil
}

// Run starts the dashboard main loop. It initializes the terminal, starts
// event handling and the refresh loop, and blocks until Stop or an exit key.
func (a *App) Run() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	a.screen = screen
	a.screen.Clear()

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pollEvents(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.refreshLoop(ctx)
	}()

	a.refresh()
	a.render()

	for {
		select {
		case <-a.stopChan:
			cancel()
			wg.Wait()
			a.cleanup()
			return nil

		case event := <-a.keyChan:
			if event.Key == tcell.KeyCtrlC || event.Rune == 'q' {
				cancel()
				wg.Wait()
				a.cleanup()
				return nil
			}
			if event.Rune == 'r' {
				a.refresh()
			}
			a.render()
		}
	}
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		close(a.stopChan)
		a.running = false
	}
}

// cleanup restores the terminal state.
func (a *App) cleanup() {
	if a.screen != nil {
		a.screen.Fini()
	}
}

// pollEvents polls for terminal events and sends them to the key channel.
func (a *App) pollEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}

			switch e := ev.(type) {
			case *tcell.EventKey:
				select {
				case a.keyChan <- KeyEvent{Key: e.Key(), Rune: e.Rune(), Mod: e.Modifiers()}:
				case <-ctx.Done():
					return
				}
			case *tcell.EventResize:
				a.screen.Sync()
				a.render()
			}
		}
	}
}

// refreshLoop periodically refreshes the node status.
func (a *App) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh()
			a.render()
		}
	}
}

// refresh fetches the latest status and updates the model.
func (a *App) refresh() {
	status, err := a.fetcher.Fetch()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	if err == nil {
		a.status = status
		a.fetchAt = time.Now()
	}
}

// render draws the current state to the screen.
func (a *App) render() {
	a.mu.RLock()
	lines := renderLines(a.status, a.fetchAt, a.lastErr)
	a.mu.RUnlock()

	a.screen.Clear()
	for row, line := range lines {
		for col, r := range line {
			a.screen.SetContent(col, row, r, nil, tcell.StyleDefault)
		}
	}
	a.screen.Show()
}

// renderLines formats the status into screen lines.
func renderLines(status *types.StatusResponse, fetchAt time.Time, lastErr error) []string {
	lines := []string{
		"raftwire dashboard    q: quit  r: refresh",
		"",
	}

	if lastErr != nil {
		lines = append(lines, fmt.Sprintf("connection error: %v", lastErr))
	}
	if status == nil {
		lines = append(lines, "waiting for first status fetch...")
		return lines
	}

	lines = append(lines,
		fmt.Sprintf("server  %s", status.ServerID),
		fmt.Sprintf("group   %s", status.GroupID),
		fmt.Sprintf("addr    %s", status.Addr),
		fmt.Sprintf("updated %s", fetchAt.Format("15:04:05")),
		"",
		fmt.Sprintf("sends   posted=%d timed_out=%d failed=%d rejected=%d pending=%d",
			status.Sends.Posted, status.Sends.TimedOut, status.Sends.Failed,
			status.Sends.Rejected, status.Sends.Pending),
		"",
		fmt.Sprintf("peers (%d)", len(status.Peers)),
	)

	sorted := make([]int, len(status.Peers))
	for i := range sorted {
		sorted[i] = i
	}
	sort.Slice(sorted, func(i, j int) bool {
		return status.Peers[sorted[i]].ID.String() < status.Peers[sorted[j]].ID.String()
	})
	for _, i := range sorted {
		p := status.Peers[i]
		lifetime := "administered"
		if p.Expirable {
			lifetime = "learnt"
		}
		lines = append(lines, fmt.Sprintf("  %s  %-21s  %s", p.ID, p.Addr, lifetime))
	}

	return lines
}

// IsRunning returns whether the application is currently running.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}
