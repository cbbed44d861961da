package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/micromdm/go4/env"
	"github.com/pkg/errors"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pipeline"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/platform/history"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/profile"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/rules"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/scraper"
)

const (
	signedProfileName   = "RevokeGuard_Auto-Sync.mobileconfig"
	unsignedProfileName = "RevokeGuard_Auto-Sync.plist"
	metadataName        = "metadata.json"
)

type buildConfig struct {
	SourcesPath string
	ProfileDir  string
	OutputDir   string

	CertPath string
	KeyPath  string
	P12Path  string
	P12Pass  string

	DisplayName string
	Author      string
	Workers     int
}

func buildFlags(flagset *flag.FlagSet) *buildConfig {
	cfg := new(buildConfig)
	flagset.StringVar(&cfg.SourcesPath, "sources", "sources.json", "path to the scraping sources config")
	flagset.StringVar(&cfg.ProfileDir, "profile-dir", "", "read .mobileconfig inputs from a directory instead of scraping")
	flagset.StringVar(&cfg.OutputDir, "output", "output", "output directory for generated artifacts")
	flagset.StringVar(&cfg.CertPath, "sign-cert", env.String("SSL_CERT_PATH", ""), "path to the signing certificate chain (PEM or DER)")
	flagset.StringVar(&cfg.KeyPath, "sign-key", env.String("SSL_KEY_PATH", ""), "path to the signing private key (PEM or DER)")
	flagset.StringVar(&cfg.P12Path, "sign-p12", "", "path to a PKCS#12 signing identity bundle")
	flagset.StringVar(&cfg.P12Pass, "sign-p12-pass", env.String("SIGN_P12_PASSWORD", ""), "password for the PKCS#12 bundle")
	flagset.StringVar(&cfg.DisplayName, "display-name", profile.DisplayName, "display name of the generated profile")
	flagset.StringVar(&cfg.Author, "author", "RzMY", "author stamped on generated rule files")
	flagset.IntVar(&cfg.Workers, "workers", 4, "number of sources decrypted concurrently")
	return cfg
}

func build(args []string) error {
	flagset := flag.NewFlagSet("build", flag.ExitOnError)
	cfg := buildFlags(flagset)
	flagset.Usage = usageFor(flagset, "antirevoke build [flags]")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	stdlog.SetOutput(log.NewStdlibAdapter(logger)) // force structured logs
	mainLogger := log.With(logger, "component", "main")
	mainLogger.Log("msg", "started")

	out, files, err := runBuild(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	mainLogger.Log(
		"msg", "pipeline completed",
		"domains", len(out.Domains),
		"signed", out.Signed,
		"sources_ok", out.Report.SourceSuccessCount,
		"sources_failed", out.Report.SourceFailureCount,
		"profile", files["Profile"],
	)
	return nil
}

// runBuild executes one full pipeline run and writes every artifact
// into the output directory.
func runBuild(ctx context.Context, cfg *buildConfig, logger log.Logger) (*pipeline.Output, map[string]string, error) {
	sources, err := gatherSources(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// The signing identity stays scoped to this run; it is loaded
	// right before processing and dropped with the call frame.
	identity, err := loadIdentity(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(
		&profile.Builder{DisplayName: cfg.DisplayName},
		log.With(logger, "component", "pipeline"),
	)
	if cfg.Workers > 0 {
		p.Workers = cfg.Workers
	}
	out, err := p.Process(ctx, sources, identity)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	files, err := writeArtifacts(cfg.OutputDir, out, rules.Header{
		Author:      cfg.Author,
		Updated:     now,
		DomainCount: len(out.Domains),
	})
	if err != nil {
		return nil, nil, err
	}

	record := &history.Record{
		Timestamp:      now,
		Report:         out.Report,
		GeneratedFiles: files,
	}
	if err := writeMetadata(cfg.OutputDir, record); err != nil {
		return nil, nil, err
	}
	return out, files, nil
}

func loadIdentity(cfg *buildConfig, logger log.Logger) (*crypto.SigningIdentity, error) {
	switch {
	case cfg.P12Path != "":
		return crypto.LoadSigningIdentityP12(cfg.P12Path, cfg.P12Pass)
	case cfg.CertPath != "" && cfg.KeyPath != "":
		return crypto.LoadSigningIdentity(cfg.CertPath, cfg.KeyPath)
	default:
		logger.Log("msg", "signing certificate or key not configured, profile will be unsigned")
		return nil, nil
	}
}

func gatherSources(ctx context.Context, cfg *buildConfig, logger log.Logger) ([]pipeline.Source, error) {
	if cfg.ProfileDir != "" {
		return readProfileDir(cfg.ProfileDir)
	}

	specs, err := scraper.LoadSources(cfg.SourcesPath)
	if err != nil {
		return nil, err
	}
	scraped := scraper.New(log.With(logger, "component", "scraper")).Scrape(ctx, specs)

	// keep the config file's order so logs and reports stay stable
	var sources []pipeline.Source
	for _, spec := range specs {
		data, ok := scraped[spec.Name]
		if !ok {
			continue
		}
		sources = append(sources, pipeline.Source{Name: spec.Name, Data: data})
	}
	return sources, nil
}

func readProfileDir(dir string) ([]pipeline.Source, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mobileconfig"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing profiles in %s", dir)
	}
	sort.Strings(matches)

	var sources []pipeline.Source
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading profile %s", path)
		}
		name := filepath.Base(path)
		sources = append(sources, pipeline.Source{Name: name, Data: data})
	}
	return sources, nil
}

func writeArtifacts(dir string, out *pipeline.Output, h rules.Header) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", dir)
	}

	// the unsigned artifact keeps the bare .plist name so nothing
	// downstream mistakes it for a signed profile
	name := unsignedProfileName
	if out.Signed {
		name = signedProfileName
	}
	profilePath := filepath.Join(dir, name)
	if err := os.WriteFile(profilePath, out.Mobileconfig, 0644); err != nil {
		return nil, errors.Wrap(err, "writing profile artifact")
	}

	files, err := rules.WriteAll(dir, out.Domains, h)
	if err != nil {
		return nil, err
	}
	files["Profile"] = profilePath
	return files, nil
}

func writeMetadata(dir string, record *history.Record) error {
	data, err := history.MarshalRecord(record)
	if err != nil {
		return errors.Wrap(err, "marshalling build metadata")
	}
	path := filepath.Join(dir, metadataName)
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing build metadata")
}
