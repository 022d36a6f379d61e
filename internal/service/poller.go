package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"

	lru "github.com/hashicorp/golang-lru"
)

const (
	loopTelemetry = "telemetry"
	loopLogs      = "logs"
)

// Poller keeps telemetry and the device activity log fresh. Each loop
// issues one request at a time, so its results apply in issue order.
type Poller struct {
	*core
	device      Device
	opts        Options
	seen        *lru.Cache
	onTelemetry func(models.BatteryTelemetry)
}

func NewPoller(c *core, device Device, opts Options, onTelemetry func(models.BatteryTelemetry)) (*Poller, error) {
	seen, err := lru.New(opts.SeenLogs)
	if err != nil {
		return nil, fmt.Errorf("seen log cache: %w", err)
	}
	return &Poller{core: c, device: device, opts: opts, seen: seen, onTelemetry: onTelemetry}, nil
}

// Run polls until ctx is cancelled. Cancelling ctx also cancels in-flight
// requests, and any result still on its way is discarded.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.loopEvery(ctx, loopTelemetry, p.opts.TelemetryInterval, p.PollTelemetry)
	}()
	go func() {
		defer wg.Done()
		p.loopEvery(ctx, loopLogs, p.opts.LogsInterval, p.PollLogs)
	}()
	wg.Wait()
}

func (p *Poller) loopEvery(ctx context.Context, name string, interval time.Duration, poll func(context.Context) error) {
	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := poll(ctx); err != nil {
			failures++
		} else {
			failures = 0
		}
		wait := backoff(interval, failures, p.opts.MaxBackoff)
		if failures > 0 {
			p.log.Debugw("poll_backoff", "loop", name, "failures", failures, "wait", wait)
		}
		timer.Reset(wait)
	}
}

// backoff returns interval*2^failures capped at max.
func backoff(interval time.Duration, failures int, max time.Duration) time.Duration {
	if max < interval {
		max = interval
	}
	d := interval
	for i := 0; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// PollTelemetry fetches one battery snapshot and applies it. On failure
// the previous snapshot stays in place and one error entry is recorded.
func (p *Poller) PollTelemetry(ctx context.Context) error {
	start := time.Now()
	t, err := p.device.GetBattery(ctx)
	p.metrics.ObservePoll(loopTelemetry, time.Since(start), err)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	applyErr := p.loop.Do(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.recordOnLoop(models.KindError, models.ActorSystem, "Telemetry unavailable",
				"Unable to read battery status: "+client.Cause(err))
			return
		}
		p.repos.Telemetry.Save(t)
		p.repos.History.Push(models.PowerSample{
			Time:    t.ReceivedAt.Format("15:04:05"),
			Power:   t.PowerWatts(),
			Current: t.CurrentAmps(),
			At:      t.ReceivedAt,
		})
		p.metrics.SetBattery(t.Percentage)
		if p.onTelemetry != nil {
			p.onTelemetry(t)
		}
	})
	if err != nil {
		p.log.Warnw("telemetry_poll_failed", "kind", client.KindOf(err), "err", err)
		return err
	}
	return applyErr
}

// PollLogs fetches the device log and merges entries not seen before,
// oldest first, so the newest device entry ends up on top.
func (p *Poller) PollLogs(ctx context.Context) error {
	start := time.Now()
	logs, err := p.device.GetLogs(ctx)
	p.metrics.ObservePoll(loopLogs, time.Since(start), err)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err == nil {
		sort.SliceStable(logs, func(i, j int) bool {
			return logs[i].Timestamp.Before(logs[j].Timestamp)
		})
	}

	applyErr := p.loop.Do(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.recordOnLoop(models.KindError, models.ActorSystem, "Device log unavailable",
				"Unable to read device activity: "+client.Cause(err))
			return
		}
		for _, l := range logs {
			if p.seen.Contains(l.ID) {
				continue
			}
			p.seen.Add(l.ID, struct{}{})
			e := p.repos.Activity.Append(l.Entry())
			p.metrics.ObserveEntry(string(e.Kind))
		}
	})
	if err != nil {
		p.log.Warnw("logs_poll_failed", "kind", client.KindOf(err), "err", err)
		return err
	}
	return applyErr
}
