// Package console is an interactive operator prompt over the dashboard core.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/service"

	"github.com/chzyer/readline"
)

const (
	defaultLogLines = 10
	confirmTimeout  = 15 * time.Second
)

var errQuit = errors.New("quit")

// Controller is the part of the dashboard service the console drives.
type Controller interface {
	Dashboard() models.Dashboard
	AllowsManualToggle() bool
	ToggleRelay(ctx context.Context, on bool) (service.Receipt, error)
	SwitchMode(ctx context.Context, mode models.OperatingMode) error
	UpdateAutoShutoff(ctx context.Context, enabled bool, threshold *int) (models.RelayStatus, error)
	Acquire() (release func())
}

var _ Controller = (*service.Service)(nil)

// Console executes operator commands and prints results to out.
type Console struct {
	ctl    Controller
	out    io.Writer
	prompt string
}

func New(ctl Controller, out io.Writer, prompt string) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{ctl: ctl, out: out, prompt: prompt}
}

// Run reads commands until EXIT, Ctrl+D or ctx is done. Ctrl+C calls
// cancel. The console counts as a viewer while it runs.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      c.promptFor(),
		HistoryFile: historyFilePath(),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	var closeOnce sync.Once
	closeRL := func() { closeOnce.Do(func() { _ = rl.Close() }) }
	defer closeRL()
	c.out = rl.Stdout()

	release := c.ctl.Acquire()
	defer release()

	go func() {
		<-ctx.Done()
		closeRL()
	}()

	c.printHelp()
	for {
		rl.SetPrompt(c.promptFor())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel()
			return nil
		}
		if err != nil {
			// EOF or closed on shutdown
			return nil
		}
		if err := c.Execute(ctx, line); errors.Is(err, errQuit) {
			cancel()
			return nil
		}
	}
}

// Execute runs one command line. It returns errQuit for EXIT.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "ON", "OFF":
		return c.toggle(ctx, fields[0] == "ON")
	case "STATUS":
		c.printStatus()
	case "AUTO":
		return c.switchMode(ctx, models.ModeAuto)
	case "MANUAL":
		return c.switchMode(ctx, models.ModeManual)
	case "LOGS":
		n := defaultLogLines
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				c.printf("Usage: LOGS [count]\n")
				return nil
			}
			n = v
		}
		c.printLogs(n)
	case "SHUTOFF":
		return c.shutoff(ctx, fields[1:])
	case "HELP", "?":
		c.printHelp()
	case "EXIT", "QUIT":
		c.printf("Bye.\n")
		return errQuit
	default:
		c.printf("Invalid command %q. Type HELP for the list.\n", fields[0])
	}
	return nil
}

func (c *Console) toggle(ctx context.Context, on bool) error {
	word := "OFF"
	if on {
		word = "ON"
	}
	if !c.ctl.AllowsManualToggle() {
		c.printf("Relay is under automatic control. Type MANUAL to switch mode first.\n")
		return nil
	}
	receipt, err := c.ctl.ToggleRelay(ctx, on)
	if err != nil {
		c.printf("Cannot turn charger %s: %v\n", word, err)
		return nil
	}
	c.printf("→ Charger %s (command #%d sent)\n", word, receipt.Seq)

	wait, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	select {
	case err := <-receipt.Confirmed:
		if err != nil {
			c.printf("✗ Device refused: %s. Relay restored to %s.\n", client.Cause(err), onOff(c.ctl.Dashboard().Relay.IsConnected))
			return nil
		}
		c.printf("✓ Device confirmed charger %s\n", word)
	case <-wait.Done():
		c.printf("… still waiting for the device; check STATUS later\n")
	}
	return nil
}

func (c *Console) switchMode(ctx context.Context, mode models.OperatingMode) error {
	c.printf("→ Switching to %s mode...\n", mode)
	if err := c.ctl.SwitchMode(ctx, mode); err != nil {
		c.printf("✗ Mode change failed: %s\n", client.Cause(err))
		return nil
	}
	c.printf("✓ Device is in %s mode\n", mode)
	return nil
}

func (c *Console) shutoff(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.printf("Usage: SHUTOFF ON [threshold] | SHUTOFF OFF\n")
		return nil
	}
	var threshold *int
	enabled := args[0] == "ON"
	if !enabled && args[0] != "OFF" {
		c.printf("Usage: SHUTOFF ON [threshold] | SHUTOFF OFF\n")
		return nil
	}
	if enabled && len(args) > 1 {
		v, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
		if err != nil {
			c.printf("Threshold must be a number between 0 and 100\n")
			return nil
		}
		threshold = &v
	}
	st, err := c.ctl.UpdateAutoShutoff(ctx, enabled, threshold)
	if err != nil {
		c.printf("Cannot update auto-shutoff: %v\n", err)
		return nil
	}
	if st.AutoShutoffEnabled {
		c.printf("Auto-shutoff enabled at %d%%\n", st.AutoShutoffThreshold)
	} else {
		c.printf("Auto-shutoff disabled\n")
	}
	return nil
}

func (c *Console) printStatus() {
	d := c.ctl.Dashboard()
	if d.HasTelemetry {
		t := d.Telemetry
		c.printf("Battery: %.0f%% (%s", t.Percentage, t.Status)
		if t.TimeRemaining > 0 {
			c.printf(", %d min left", t.TimeRemaining)
		}
		c.printf(")\n")
	} else {
		c.printf("Battery: no telemetry yet\n")
	}
	pending := ""
	if d.Relay.Pending {
		pending = " (awaiting confirmation)"
	}
	c.printf("Charger: %s%s\n", onOff(d.Relay.IsConnected), pending)
	c.printf("Mode: %s\n", d.Mode)
	if d.Relay.AutoShutoffEnabled {
		c.printf("Auto-shutoff: %d%%\n", d.Relay.AutoShutoffThreshold)
	} else {
		c.printf("Auto-shutoff: disabled\n")
	}
}

func (c *Console) printLogs(n int) {
	entries := c.ctl.Dashboard().Activity
	if len(entries) > n {
		entries = entries[:n]
	}
	if len(entries) == 0 {
		c.printf("No activity yet\n")
		return
	}
	for _, e := range entries {
		c.printf("%s  %-7s  %-24s  %s\n", e.Timestamp.Local().Format("15:04:05"), e.Kind, e.Action, e.Details)
	}
}

func (c *Console) printHelp() {
	c.printf("Commands: ON | OFF | STATUS | AUTO | MANUAL | LOGS [n] | SHUTOFF ON [pct] | SHUTOFF OFF | EXIT\n")
}

func (c *Console) promptFor() string {
	if c.prompt != "" {
		return string(c.ctl.Dashboard().Mode) + " " + c.prompt
	}
	return string(c.ctl.Dashboard().Mode) + " >> "
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// historyFilePath returns the prompt history location, or "" for none.
func historyFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "battery_dashboard")
	_ = os.MkdirAll(dir, 0o750)
	return filepath.Join(dir, "console_history")
}
