package pipeline

import (
	"context"
	"math/rand"
	"reflect"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto/profileutil"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/profile"
)

// testEnvelope builds a signed profile envelope carrying the given
// domains, imitating one of the scraped upstream sources.
func testEnvelope(t *testing.T, domains ...string) []byte {
	t.Helper()

	b := &profile.Builder{Rand: rand.New(rand.NewSource(7))}
	p, err := b.Build(domains)
	if err != nil {
		t.Fatal(err)
	}
	document, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}

	key, cert, err := crypto.SimpleSelfSignedRSAKeypair("upstream", 365)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := profileutil.Sign(&crypto.SigningIdentity{Certificate: cert, Key: key}, document)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func testPipeline() *Pipeline {
	return New(&profile.Builder{Rand: rand.New(rand.NewSource(1))}, log.NewNopLogger())
}

func TestProcessToleratesCorruptSource(t *testing.T) {
	sources := []Source{
		{Name: "good", Data: testEnvelope(t, "a.com", "b.com")},
		{Name: "corrupt", Data: []byte("junk, not an envelope")},
	}

	out, err := testPipeline().Process(context.Background(), sources, nil)
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"a.com", "b.com"}; !reflect.DeepEqual(out.Domains, want) {
		t.Errorf("have %v, want %v", out.Domains, want)
	}
	if have, want := out.Report.SourceSuccessCount, 1; have != want {
		t.Errorf("have %d successes, want %d", have, want)
	}
	if have, want := out.Report.SourceFailureCount, 1; have != want {
		t.Errorf("have %d failures, want %d", have, want)
	}

	var corrupt *SourceStatus
	for i := range out.Report.Sources {
		if out.Report.Sources[i].Name == "corrupt" {
			corrupt = &out.Report.Sources[i]
		}
	}
	if corrupt == nil || corrupt.Error == "" {
		t.Error("failed source must be reported with its error")
	}
}

func TestProcessMergesAcrossSources(t *testing.T) {
	sources := []Source{
		{Name: "one", Data: testEnvelope(t, "b.com", "a.com")},
		{Name: "two", Data: testEnvelope(t, "c.com", "a.com")},
	}

	out, err := testPipeline().Process(context.Background(), sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a.com", "b.com", "c.com"}; !reflect.DeepEqual(out.Domains, want) {
		t.Errorf("have %v, want %v", out.Domains, want)
	}
}

func TestProcessNoUsableSources(t *testing.T) {
	sources := []Source{
		{Name: "bad1", Data: []byte("junk")},
		{Name: "bad2", Data: nil},
	}

	out, err := testPipeline().Process(context.Background(), sources, nil)
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if !IsNoUsableSources(err) {
		t.Errorf("have %v, want NoUsableSources", err)
	}
	if out != nil {
		t.Error("a failed run must not produce output")
	}
}

func TestProcessUnsignedMode(t *testing.T) {
	sources := []Source{{Name: "good", Data: testEnvelope(t, "a.com")}}

	out, err := testPipeline().Process(context.Background(), sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Signed {
		t.Error("no identity was supplied but the output claims to be signed")
	}
	// unsigned mode emits the bare document
	if !reflect.DeepEqual(out.Mobileconfig, profile.Mobileconfig(out.Document)) {
		t.Error("unsigned output must be the encoded document")
	}
}

func TestProcessSigned(t *testing.T) {
	key, cert, err := crypto.SimpleSelfSignedRSAKeypair("resign", 365)
	if err != nil {
		t.Fatal(err)
	}
	identity := &crypto.SigningIdentity{Certificate: cert, Key: key}

	sources := []Source{{Name: "good", Data: testEnvelope(t, "a.com")}}
	out, err := testPipeline().Process(context.Background(), sources, identity)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Signed {
		t.Fatal("output should be signed")
	}

	recovered, err := profileutil.Unwrap(out.Mobileconfig)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(recovered, out.Document) {
		t.Error("signed envelope does not wrap the emitted document")
	}
}

func TestProcessSigningFailureIsFatal(t *testing.T) {
	_, cert, err := crypto.SimpleSelfSignedRSAKeypair("resign", 365)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, _, err := crypto.SimpleSelfSignedRSAKeypair("other", 365)
	if err != nil {
		t.Fatal(err)
	}
	identity := &crypto.SigningIdentity{Certificate: cert, Key: otherKey}

	sources := []Source{{Name: "good", Data: testEnvelope(t, "a.com")}}
	out, err := testPipeline().Process(context.Background(), sources, identity)
	if err == nil {
		t.Fatal("expected signing failure to abort the run")
	}
	if !IsSigningFailed(err) {
		t.Errorf("have %v, want SigningFailed", err)
	}
	if out != nil {
		t.Error("no artifact may be emitted when signing fails")
	}
}

func TestProcessEmptyDomainListIsValid(t *testing.T) {
	// a decodable source with no DNS payload contributes nothing, but
	// the run still succeeds and emits an empty-domain profile
	b := &profile.Builder{Rand: rand.New(rand.NewSource(3))}
	p, err := b.Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	p.PayloadContent = nil
	document, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	key, cert, err := crypto.SimpleSelfSignedRSAKeypair("upstream", 365)
	if err != nil {
		t.Fatal(err)
	}
	envelope, err := profileutil.Sign(&crypto.SigningIdentity{Certificate: cert, Key: key}, document)
	if err != nil {
		t.Fatal(err)
	}

	out, err := testPipeline().Process(context.Background(), []Source{{Name: "empty", Data: envelope}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Domains) != 0 {
		t.Errorf("have %v, want no domains", out.Domains)
	}
	if have, want := out.Report.SourceSuccessCount, 1; have != want {
		t.Errorf("have %d successes, want %d", have, want)
	}
}
