package resolve

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/session"
)

var tracer = otel.Tracer("handlecheck/resolve")

type Resolver struct {
	fast  FastProber
	deep  DeepProber
	cfg   Config
	valid *regexp2.Regexp

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a resolver. deep may be nil when no profile source is configured.
func New(fast FastProber, deep DeepProber, cfg Config) (*Resolver, error) {
	if fast == nil {
		return nil, errors.New("fast prober is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	r := &Resolver{fast: fast, deep: deep, cfg: cfg, sleep: sleepContext}
	if cfg.RegexCheck != "" {
		re, err := regexp2.Compile(cfg.RegexCheck, 0)
		if err != nil {
			return nil, errors.Wrap(err, "invalid regexCheck")
		}
		r.valid = re
	}
	return r, nil
}

// Normalize trims and lower-cases handles, drops empty ones and keeps the
// first occurrence of each.
func Normalize(handles []string) []string {
	out := make([]string, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

type outcome struct {
	result    probe.Result
	networked bool
	deepUsed  bool
}

// Resolve returns one result per distinct normalized handle, in input order.
// When ctx is cancelled, handles not yet started are dropped and ctx.Err()
// is returned with the results gathered so far.
func (r *Resolver) Resolve(ctx context.Context, handles []string, creds session.Credentials) ([]probe.Result, error) {
	queue := Normalize(handles)
	creds = creds.WithAPIKey(r.cfg.APIKey)

	workers := min(r.cfg.Concurrency, len(queue))
	if workers == 0 {
		return []probe.Result{}, nil
	}

	results := make([]probe.Result, len(queue))
	done := make([]bool, len(queue))
	var invalidate sync.Once

	jobs := make(chan int) // Indices into queue.

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			var prev *outcome
			for i := range jobs {
				if prev != nil && prev.networked {
					if err := r.sleep(ctx, r.delay(prev.deepUsed)); err != nil {
						return
					}
				}
				if ctx.Err() != nil {
					return
				}

				o := r.resolveOne(ctx, queue[i], creds, &invalidate)
				results[i], done[i] = o.result, true
				prev = &o
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range queue {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()

	out := make([]probe.Result, 0, len(queue))
	for i, ok := range done {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, ctx.Err()
}

func (r *Resolver) resolveOne(ctx context.Context, handle string, creds session.Credentials, invalidate *sync.Once) outcome {
	// a started handle always runs to completion; only the http timeout bounds it
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "resolve:handle")
	defer span.End()
	span.SetAttributes(attribute.String("handle", handle))

	log := r.cfg.Logger.WithField("handle", handle)

	if r.valid != nil {
		if ok, err := r.valid.MatchString(handle); err != nil || !ok {
			detail := fmt.Sprintf("handle does not match %s", r.cfg.RegexCheck)
			if err != nil {
				detail = "regexCheck match error: " + err.Error()
			}
			span.SetStatus(codes.Error, detail)
			return outcome{result: probe.Result{
				Username: handle,
				Status:   probe.StatusError,
				Method:   probe.MethodValidation,
				Kind:     probe.KindInvalid,
				Detail:   detail,
			}}
		}
	}

	baseline := r.fast.Probe(ctx, handle)
	baseline.Username = handle
	o := outcome{result: baseline, networked: true}

	deepAvailable := r.deep != nil && r.deep.Available(creds)
	switch decide(baseline.Status, deepAvailable) {
	case keepBaseline:
	case runDeep:
		deep := r.deep.Probe(ctx, handle, creds)
		o.deepUsed = true
		if deep.Status == probe.StatusError {
			log.WithFields(logrus.Fields{
				"method": deep.Method,
				"detail": deep.Detail,
			}).Warn("deep check failed, keeping fast result")
		}
		if r.cfg.Store != nil && creds.Persisted() && r.deep.SessionRejected(deep, creds) {
			invalidate.Do(func() {
				log.WithField("source", creds.Source).Warn("deep check rejected saved session, invalidating it")
				if err := r.cfg.Store.Invalidate(ctx); err != nil {
					log.WithError(err).Error("failed to invalidate session")
				}
			})
		}
		o.result = merge(baseline, deep)

	case reportError:
		if o.result.Status != probe.StatusError {
			o.result.Status, o.result.Kind = probe.StatusError, probe.KindTransient
			o.result.Detail = fmt.Sprintf("unclassified fast result %q", baseline.Status)
		}
	}

	if o.result.Status == probe.StatusError {
		span.SetStatus(codes.Error, o.result.Detail)
	}
	span.SetAttributes(
		attribute.String("status", string(o.result.Status)),
		attribute.String("method", string(o.result.Method)),
	)
	log.WithFields(logrus.Fields{
		"baseline": baseline.Status,
		"status":   o.result.Status,
		"method":   o.result.Method,
		"deep":     o.deepUsed,
	}).Debug("resolved handle")

	return o
}

func (r *Resolver) delay(deepUsed bool) time.Duration {
	rng := r.cfg.Pacing.Fast
	if deepUsed {
		rng = r.cfg.Pacing.Deep
	}
	if rng.Max <= rng.Min {
		return max(rng.Min, 0)
	}
	return rng.Min + rand.N(rng.Max-rng.Min+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
