// Package pipeline orchestrates the profile rebuild: unwrap each
// scraped envelope, extract and merge the domain lists, build a fresh
// profile and resign it.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto/profileutil"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/profile"
)

const defaultWorkers = 4

// Source is one scraped envelope, named for reporting.
type Source struct {
	Name string
	Data []byte
}

type PipelineReason int

const (
	// NoUsableSources means every input envelope failed to unwrap or
	// decode, leaving nothing to merge.
	NoUsableSources PipelineReason = iota

	// SigningFailed means the rebuilt profile could not be signed. The
	// pipeline never silently emits an unsigned artifact when signing
	// was requested.
	SigningFailed
)

type PipelineError struct {
	Reason PipelineReason
	Err    error
}

func (e *PipelineError) Error() string {
	switch e.Reason {
	case NoUsableSources:
		return "no usable profile sources"
	case SigningFailed:
		return fmt.Sprintf("signing rebuilt profile: %v", e.Err)
	default:
		return fmt.Sprintf("pipeline error: %v", e.Err)
	}
}

func IsNoUsableSources(err error) bool {
	pe, ok := errors.Cause(err).(*PipelineError)
	return ok && pe.Reason == NoUsableSources
}

func IsSigningFailed(err error) bool {
	pe, ok := errors.Cause(err).(*PipelineError)
	return ok && pe.Reason == SigningFailed
}

// Output is the result of one pipeline run.
type Output struct {
	// Mobileconfig is the emitted artifact: a CMS signed envelope when
	// an identity was supplied, otherwise the bare XML plist.
	Mobileconfig profile.Mobileconfig

	// Document is the encoded, unsigned profile plist.
	Document []byte

	// Domains is the merged domain set, sorted.
	Domains []string

	Signed bool
	Report Report
}

type Pipeline struct {
	builder *profile.Builder
	logger  log.Logger

	// Workers bounds the number of envelopes unwrapped concurrently.
	Workers int
}

func New(builder *profile.Builder, logger log.Logger) *Pipeline {
	if builder == nil {
		builder = &profile.Builder{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Pipeline{
		builder: builder,
		logger:  logger,
		Workers: defaultWorkers,
	}
}

// Process runs the full rebuild over the scraped envelopes. A source
// that fails to unwrap, decode or extract is skipped with a warning;
// the run only fails when no source is usable, or when signing with
// the supplied identity fails. A nil identity produces an unsigned
// document, and the caller is responsible for labeling it as such.
func (p *Pipeline) Process(ctx context.Context, sources []Source, identity *crypto.SigningIdentity) (*Output, error) {
	extracted := p.processSources(ctx, sources)

	var report Report
	var lists [][]string
	for _, res := range extracted {
		status := SourceStatus{Name: res.name, DomainCount: len(res.domains)}
		if res.err != nil {
			status.Error = res.err.Error()
			report.SourceFailureCount++
			level.Warn(p.logger).Log(
				"msg", "skipping profile source",
				"source", res.name,
				"err", res.err,
			)
		} else {
			report.SourceSuccessCount++
			lists = append(lists, res.domains)
		}
		report.Sources = append(report.Sources, status)
	}
	if report.SourceSuccessCount == 0 {
		return nil, &PipelineError{Reason: NoUsableSources}
	}

	domains := profile.MergeDomains(lists)
	report.DomainCount = len(domains)
	p.logger.Log("msg", "merged domains", "count", len(domains), "sources", report.SourceSuccessCount)

	built, err := p.builder.Build(domains)
	if err != nil {
		return nil, errors.Wrap(err, "building merged profile")
	}
	document, err := built.Encode()
	if err != nil {
		return nil, errors.Wrap(err, "encoding merged profile")
	}

	out := &Output{
		Document: document,
		Domains:  domains,
		Report:   report,
	}
	if identity == nil {
		p.logger.Log("msg", "no signing identity configured, emitting unsigned profile")
		out.Mobileconfig = document
		return out, nil
	}

	signed, err := profileutil.Sign(identity, document)
	if err != nil {
		return nil, &PipelineError{Reason: SigningFailed, Err: err}
	}
	out.Mobileconfig = signed
	out.Signed = true
	out.Report.Signed = true
	return out, nil
}

type sourceResult struct {
	name    string
	domains []string
	err     error
}

// processSources unwraps and decodes the envelopes with a bounded
// worker pool. Sources share no state, and collection order does not
// matter because the merge is order independent.
func (p *Pipeline) processSources(ctx context.Context, sources []Source) []sourceResult {
	workers := p.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	results := make([]sourceResult, len(sources))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = sourceResult{name: sources[i].Name, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results[i] = processSource(sources[i])
		}(i)
	}
	wg.Wait()
	return results
}

func processSource(src Source) sourceResult {
	res := sourceResult{name: src.Name}

	content, err := profileutil.Unwrap(src.Data)
	if err != nil {
		res.err = errors.Wrap(err, "unwrap envelope")
		return res
	}
	doc, err := profile.Decode(content)
	if err != nil {
		res.err = errors.Wrap(err, "decode profile")
		return res
	}
	domains, err := profile.ExtractDomains(doc)
	if err != nil {
		res.err = errors.Wrap(err, "extract domains")
		return res
	}
	res.domains = domains
	return res
}
