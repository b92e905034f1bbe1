// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package profiler captures rotating pprof profiles of a running rating VM
// and reports how capturing goes through metrics and a health check.
package profiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/timer/mockable"
)

const (
	namespace   = "ratingvm_profiler"
	filePrefix  = "ratingvm"
	fileSuffix  = ".pprof"
	stampLayout = "20060102T150405.000000Z"

	// one in mutexFraction contention events is sampled while dispatching
	mutexFraction = 5

	dirPerms  = 0o755
	filePerms = 0o600
)

// Kind names a profile written on every capture.
type Kind string

const (
	CPU       Kind = "cpu"
	Heap      Kind = "heap"
	Mutex     Kind = "mutex"
	Goroutine Kind = "goroutine"
)

var (
	kinds = []Kind{CPU, Heap, Mutex, Goroutine}

	errCPUProfilerNotRunning = errors.New("cpu profiler is not running")
	errUnknownProfile        = errors.New("runtime profile not found")
)

// Config of the profiler. Every Freq a capture writes one file per Kind into
// Dir, keeping the newest MaxNumFiles of each.
type Config struct {
	Dir         string        `json:"dir"`
	Enabled     bool          `json:"enabled"`
	Freq        time.Duration `json:"freq"`
	MaxNumFiles int           `json:"maxNumFiles"`
}

// Report is the detail of the profiler health check.
type Report struct {
	Dir         string          `json:"dir"`
	Captures    uint64          `json:"captures"`
	LastCapture time.Time       `json:"lastCapture"`
	Latest      map[Kind]string `json:"latest,omitempty"`
}

type Profiler struct {
	log      log.Logger
	config   Config
	clock    *mockable.Clock
	captures metric.CounterVec

	// only touched by Dispatch
	cpu    *bytes.Buffer
	cpuErr error

	lock    sync.RWMutex
	report  Report
	lastErr error
}

func New(logger log.Logger, registry metric.Registry, config Config) *Profiler {
	metricsInstance := metric.NewWithRegistry(namespace, registry)
	return &Profiler{
		log:    logger,
		config: config,
		clock:  &mockable.Clock{},
		captures: metricsInstance.NewCounterVec(
			"captures",
			"Number of profiles written by kind and outcome",
			[]string{"kind", "outcome"},
		),
		report: Report{
			Dir:    config.Dir,
			Latest: make(map[Kind]string, len(kinds)),
		},
	}
}

// Dispatch captures profiles until ctx is done, writing a last set on the
// way out. A failed capture is logged and reported by HealthCheck without
// stopping the loop.
func (p *Profiler) Dispatch(ctx context.Context) error {
	if err := os.MkdirAll(p.config.Dir, dirPerms); err != nil {
		return err
	}
	prev := runtime.SetMutexProfileFraction(mutexFraction)
	defer runtime.SetMutexProfileFraction(prev)

	t := time.NewTicker(p.config.Freq)
	defer t.Stop()
	for {
		p.startCPU()
		select {
		case <-ctx.Done():
			p.capture()
			return nil
		case <-t.C:
			p.capture()
		}
	}
}

// HealthCheck fails while the most recent capture failed.
func (p *Profiler) HealthCheck(context.Context) (interface{}, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	report := p.report
	report.Latest = make(map[Kind]string, len(p.report.Latest))
	for kind, name := range p.report.Latest {
		report.Latest[kind] = name
	}
	return report, p.lastErr
}

func (p *Profiler) startCPU() {
	buf := new(bytes.Buffer)
	if err := pprof.StartCPUProfile(buf); err != nil {
		p.cpuErr = err
		return
	}
	p.cpu = buf
	p.cpuErr = nil
}

func (p *Profiler) stopCPU() ([]byte, error) {
	if p.cpu == nil {
		if p.cpuErr != nil {
			return nil, p.cpuErr
		}
		return nil, errCPUProfilerNotRunning
	}
	pprof.StopCPUProfile()
	data := p.cpu.Bytes()
	p.cpu = nil
	return data, nil
}

func (p *Profiler) capture() {
	stamp := p.clock.Time().Format(stampLayout)
	written := make(map[Kind]string, len(kinds))
	var errs []error
	for _, kind := range kinds {
		name, err := p.write(kind, stamp)
		outcome := "success"
		if err != nil {
			outcome = "failure"
			errs = append(errs, fmt.Errorf("%s profile: %w", kind, err))
		} else {
			written[kind] = name
		}
		p.captures.With(metric.Labels{
			"kind":    string(kind),
			"outcome": outcome,
		}).Inc()
	}
	err := errors.Join(errs...)

	p.lock.Lock()
	p.report.Captures++
	p.report.LastCapture = p.clock.Time()
	for kind, name := range written {
		p.report.Latest[kind] = name
	}
	p.lastErr = err
	p.lock.Unlock()

	if err != nil {
		p.log.Warn("failed to capture profiles",
			log.String("dir", p.config.Dir),
			log.Err(err),
		)
		return
	}
	p.log.Debug("captured profiles",
		log.String("dir", p.config.Dir),
		log.String("stamp", stamp),
	)
}

func (p *Profiler) write(kind Kind, stamp string) (string, error) {
	data, err := p.collect(kind)
	if err != nil {
		return "", err
	}
	name := filepath.Join(p.config.Dir, fmt.Sprintf("%s-%s-%s%s", filePrefix, kind, stamp, fileSuffix))
	if err := renameio.WriteFile(name, data, filePerms); err != nil {
		return "", err
	}
	return name, prune(p.config.Dir, kind, p.config.MaxNumFiles)
}

func (p *Profiler) collect(kind Kind) ([]byte, error) {
	switch kind {
	case CPU:
		return p.stopCPU()
	case Heap:
		runtime.GC()
	}
	profile := pprof.Lookup(string(kind))
	if profile == nil {
		return nil, fmt.Errorf("%w: %s", errUnknownProfile, kind)
	}
	var buf bytes.Buffer
	if err := profile.WriteTo(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// prune removes all but the newest keep files of kind from dir. Stamps sort
// in time order.
func prune(dir string, kind Kind, keep int) error {
	names, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s-%s-*%s", filePrefix, kind, fileSuffix)))
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
