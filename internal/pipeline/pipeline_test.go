package pipeline

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/metrics/mocks"
	"github.com/anstrom/topodraw/internal/report"
)

const missingAddrType = `<nmaprun><host><address addr="10.0.0.1"/></host></nmaprun>`

type mxCell struct {
	ID     string `xml:"id,attr"`
	Value  string `xml:"value,attr"`
	Parent string `xml:"parent,attr"`
	Geo    struct {
		X      int `xml:"x,attr"`
		Y      int `xml:"y,attr"`
		Width  int `xml:"width,attr"`
		Height int `xml:"height,attr"`
	} `xml:"mxGeometry"`
}

func cellsByID(t *testing.T, doc []byte) map[string]mxCell {
	t.Helper()
	var d struct {
		Cells []mxCell `xml:"root>mxCell"`
	}
	require.NoError(t, xml.Unmarshal(doc, &d))
	out := make(map[string]mxCell, len(d.Cells))
	for _, c := range d.Cells {
		out[c.ID] = c
	}
	return out
}

// PipelineTestSuite runs the whole pipeline over the fixture report.
type PipelineTestSuite struct {
	suite.Suite
	fixture  []byte
	renderer *Renderer
	dir      string
}

func (s *PipelineTestSuite) SetupSuite() {
	data, err := os.ReadFile("testdata/scan.xml")
	s.Require().NoError(err)
	s.fixture = data
}

func (s *PipelineTestSuite) SetupTest() {
	s.renderer = New(WithLogger(logging.NewDiscard()))
	s.dir = s.T().TempDir()
}

func (s *PipelineTestSuite) render(doc []byte) ([]byte, error) {
	return s.renderer.Render(report.NewXMLSource(bytes.NewReader(doc)))
}

func (s *PipelineTestSuite) TestDeterministicOutput() {
	first, err := s.render(s.fixture)
	s.Require().NoError(err)
	second, err := s.render(s.fixture)
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *PipelineTestSuite) TestClustersStackByDistance() {
	out, err := s.render(s.fixture)
	s.Require().NoError(err)
	cells := cellsByID(s.T(), out)

	for distance, y := range map[int]int{0: 10, 1: 240, 2: 470} {
		bound, ok := cells[fmt.Sprintf("network-network-%d-bound", distance)]
		s.Require().True(ok, "cluster %d missing", distance)
		s.Equal(10, bound.Geo.X)
		s.Equal(y, bound.Geo.Y, "cluster %d", distance)
	}

	gw := cells["network-network-0-0-1"]
	s.Equal("gateway.lan", gw.Value)
	s.Equal("network-network-0-0-0", gw.Parent)
	s.Equal("MAC: AA:BB:CC:DD:EE:01", cells["network-network-0-0-3"].Value)
	s.Equal("OS: Linux", cells["network-network-0-0-7"].Value)

	s.Equal("8080/tcp unknown", cells["network-network-2-0-3"].Value)
}

func (s *PipelineTestSuite) TestServiceTablesFollowClusters() {
	out, err := s.render(s.fixture)
	s.Require().NoError(err)
	cells := cellsByID(s.T(), out)

	ssh, ok := cells["table4-0"]
	s.Require().True(ok, "first table id continues after the three clusters")
	s.Equal(1000+4*180, ssh.Geo.X)
	s.Equal(20, ssh.Geo.Y)
	s.Equal(20*(2+3), ssh.Geo.Height)

	s.Equal("ssh\n(OpenSSH 8.2p1 Ubuntu 4ubuntu0.5)", cells["header-table4-0"].Value)
	s.Equal("192.168.1.1", cells["table4-1a"].Value)
	s.Equal("10.0.0.5", cells["table4-2a"].Value)
	s.Equal("22", cells["table4-2b"].Value)

	s.Equal("http\n(lighttpd unknown)", cells["header-table6-0"].Value)
	s.Equal("snmp\n(net-snmp 5.9)", cells["header-table7-0"].Value)
	s.Equal("fe80::1", cells["table7-1a"].Value)
	_, extra := cells["table8-0"]
	s.False(extra)
}

func (s *PipelineTestSuite) TestAnalyze() {
	inv, err := s.renderer.Analyze(context.Background(), report.NewXMLSource(bytes.NewReader(s.fixture)))
	s.Require().NoError(err)

	s.NotEmpty(inv.RunID)
	s.Len(inv.Hosts, 3)
	s.Len(inv.Clusters, 3)
	s.Len(inv.Tables.Services, 4)
}

func (s *PipelineTestSuite) TestMalformedRecordProducesNoOutput() {
	out, err := s.render([]byte(missingAddrType))

	s.Nil(out)
	s.True(errors.IsCode(err, errors.CodeMalformedRecord), "got %v", err)
}

func (s *PipelineTestSuite) TestRenderFile() {
	in := filepath.Join(s.dir, "scan.xml")
	out := filepath.Join(s.dir, "diagram.drawio")
	s.Require().NoError(os.WriteFile(in, s.fixture, 0600))

	s.Require().NoError(s.renderer.RenderFile(context.Background(), in, out))

	written, err := os.ReadFile(out)
	s.Require().NoError(err)
	expected, err := s.render(s.fixture)
	s.Require().NoError(err)
	s.Equal(expected, written)
	s.assertNoTempFiles()
}

func (s *PipelineTestSuite) TestRenderFileFailureKeepsExistingOutput() {
	in := filepath.Join(s.dir, "bad.xml")
	out := filepath.Join(s.dir, "diagram.drawio")
	s.Require().NoError(os.WriteFile(in, []byte(missingAddrType), 0600))
	s.Require().NoError(os.WriteFile(out, []byte("previous"), 0600))

	err := s.renderer.RenderFile(context.Background(), in, out)
	s.True(errors.IsCode(err, errors.CodeMalformedRecord), "got %v", err)

	kept, readErr := os.ReadFile(out)
	s.Require().NoError(readErr)
	s.Equal("previous", string(kept))
	s.assertNoTempFiles()
}

func (s *PipelineTestSuite) TestRenderFileFailureCreatesNoOutput() {
	in := filepath.Join(s.dir, "bad.xml")
	out := filepath.Join(s.dir, "diagram.drawio")
	s.Require().NoError(os.WriteFile(in, []byte(missingAddrType), 0600))

	s.Error(s.renderer.RenderFile(context.Background(), in, out))

	_, err := os.Stat(out)
	s.True(os.IsNotExist(err))
}

func (s *PipelineTestSuite) TestRenderFileMissingInput() {
	err := s.renderer.RenderFile(context.Background(), filepath.Join(s.dir, "absent.xml"), filepath.Join(s.dir, "out.drawio"))
	s.True(errors.IsCode(err, errors.CodeSourceUnavailable), "got %v", err)
}

func (s *PipelineTestSuite) TestRenderFileUnwritableOutput() {
	in := filepath.Join(s.dir, "scan.xml")
	s.Require().NoError(os.WriteFile(in, s.fixture, 0600))

	err := s.renderer.RenderFile(context.Background(), in, filepath.Join(s.dir, "missing", "out.drawio"))
	s.True(errors.IsCode(err, errors.CodeSinkUnavailable), "got %v", err)
}

func (s *PipelineTestSuite) TestRenderFileCanceled() {
	in := filepath.Join(s.dir, "scan.xml")
	out := filepath.Join(s.dir, "out.drawio")
	s.Require().NoError(os.WriteFile(in, s.fixture, 0600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.renderer.RenderFile(ctx, in, out)
	s.True(errors.IsCode(err, errors.CodeCanceled), "got %v", err)
	_, statErr := os.Stat(out)
	s.True(os.IsNotExist(statErr))
}

func (s *PipelineTestSuite) assertNoTempFiles() {
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	for _, e := range entries {
		s.False(strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

type fakeResolver struct {
	mu    sync.Mutex
	names map[string][]string
	calls []string
}

func (f *fakeResolver) LookupAddr(_ context.Context, addr string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, addr)
	names, ok := f.names[addr]
	if !ok {
		return nil, fmt.Errorf("no PTR record for %s", addr)
	}
	return names, nil
}

func TestResolverFillsMissingHostnames(t *testing.T) {
	res := &fakeResolver{names: map[string][]string{"10.0.0.5": {"build.lan"}}}
	r := New(WithLogger(logging.NewDiscard()), WithResolver(res))

	f, err := os.Open("testdata/scan.xml")
	require.NoError(t, err)
	defer f.Close()

	inv, err := r.Analyze(context.Background(), report.NewXMLSource(f))
	require.NoError(t, err)

	assert.Equal(t, []string{"gateway.lan"}, inv.Hosts[0].Hostnames, "existing names are kept")
	assert.Equal(t, []string{"build.lan"}, inv.Hosts[1].Hostnames)
	assert.Equal(t, []string{"10.0.0.5"}, res.calls, "only hosts without names are looked up")
}

func TestResolverKeepsAddressOrder(t *testing.T) {
	doc := `<nmaprun><host>` +
		`<address addr="10.0.0.9" addrtype="ipv4"/>` +
		`<address addr="aa:bb:cc:dd:ee:ff" addrtype="mac"/>` +
		`<address addr="fd00::9" addrtype="ipv6"/>` +
		`</host></nmaprun>`
	res := &fakeResolver{names: map[string][]string{
		"10.0.0.9": {"nine.lan"},
		"fd00::9":  {"nine6.lan"},
	}}
	r := New(WithLogger(logging.NewDiscard()), WithResolver(res), WithResolveWorkers(4))

	inv, err := r.Analyze(context.Background(), report.NewXMLSource(strings.NewReader(doc)))
	require.NoError(t, err)

	assert.Equal(t, []string{"nine.lan", "nine6.lan"}, inv.Hosts[0].Hostnames)
	assert.ElementsMatch(t, []string{"10.0.0.9", "fd00::9"}, res.calls, "MAC addresses are not looked up")
}

func TestSkipIncompleteServices(t *testing.T) {
	doc := `<nmaprun><host><address addr="10.0.0.1" addrtype="ipv4"/><ports>` +
		`<port protocol="tcp" portid="9000"><service name="cslistener"/></port>` +
		`</ports></host></nmaprun>`

	_, err := New(WithLogger(logging.NewDiscard())).Render(report.NewXMLSource(strings.NewReader(doc)))
	assert.True(t, errors.IsCode(err, errors.CodeMalformedRecord))

	r := New(WithLogger(logging.NewDiscard()), WithSkipIncomplete(true))
	inv, err := r.Analyze(context.Background(), report.NewXMLSource(strings.NewReader(doc)))
	require.NoError(t, err)
	assert.Empty(t, inv.Tables.Services)
	assert.Equal(t, 1, inv.Tables.Skipped())

	out, err := r.Render(report.NewXMLSource(strings.NewReader(doc)))
	require.NoError(t, err)
	assert.NotContains(t, string(out), `id="table`)
}

func TestRecorderMeasurements(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)

	rec.EXPECT().IncUnexpectedEvents(gomock.Any()).AnyTimes()
	rec.EXPECT().AddHostsParsed(3)
	rec.EXPECT().ObserveStage("parse", gomock.Any())
	rec.EXPECT().ObserveStage("aggregate", gomock.Any())
	rec.EXPECT().ObserveStage("build", gomock.Any())
	rec.EXPECT().IncRuns("success")
	rec.EXPECT().SetServiceTables(4)
	rec.EXPECT().AddCellsEmitted(gomock.Any())

	f, err := os.Open("testdata/scan.xml")
	require.NoError(t, err)
	defer f.Close()

	r := New(WithLogger(logging.NewDiscard()), WithRecorder(rec))
	_, err = r.Render(report.NewXMLSource(f))
	require.NoError(t, err)
}

func TestRecorderCountsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)

	rec.EXPECT().IncErrors("MALFORMED_RECORD")
	rec.EXPECT().IncRuns("error")

	r := New(WithLogger(logging.NewDiscard()), WithRecorder(rec))
	_, err := r.Render(report.NewXMLSource(strings.NewReader(missingAddrType)))
	require.Error(t, err)
}

type fakeStore struct {
	runID    uuid.UUID
	source   string
	hosts    int
	services int
	err      error
}

func (f *fakeStore) SaveInventory(_ context.Context, runID uuid.UUID, source string,
	hosts []report.Host, services []inventory.ServiceTable) error {
	f.runID = runID
	f.source = source
	f.hosts = len(hosts)
	f.services = len(services)
	return f.err
}

func TestRunStoresInventory(t *testing.T) {
	store := &fakeStore{}
	r := New(WithLogger(logging.NewDiscard()), WithStore(store))

	f, err := os.Open("testdata/scan.xml")
	require.NoError(t, err)
	defer f.Close()

	out, inv, err := r.Run(context.Background(), report.NewXMLSource(f), "testdata/scan.xml")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, inv.RunID, store.runID)
	assert.Equal(t, "testdata/scan.xml", store.source)
	assert.Equal(t, 3, store.hosts)
	assert.Equal(t, 4, store.services)
}

func TestRunStoreFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{err: errors.NewDatabaseError(errors.CodeDatabaseQuery, "insert failed")}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.drawio")

	r := New(WithLogger(logging.NewDiscard()), WithStore(store))
	require.NoError(t, r.RenderFile(context.Background(), "testdata/scan.xml", out))

	_, err := os.Stat(out)
	assert.NoError(t, err)
	assert.Equal(t, "testdata/scan.xml", store.source)
}

func TestRunMalformedSkipsStore(t *testing.T) {
	store := &fakeStore{}
	r := New(WithLogger(logging.NewDiscard()), WithStore(store))

	_, _, err := r.Run(context.Background(), report.NewXMLSource(strings.NewReader(missingAddrType)), "bad.xml")
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, store.runID)
}

func TestAnalyzeFile(t *testing.T) {
	r := New(WithLogger(logging.NewDiscard()))

	inv, err := r.AnalyzeFile(context.Background(), "testdata/scan.xml")
	require.NoError(t, err)
	assert.Len(t, inv.Hosts, 3)
	assert.Len(t, inv.Clusters, 3)
	assert.Len(t, inv.Tables.Services, 4)

	_, err = r.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "absent.xml"))
	assert.True(t, errors.IsCode(err, errors.CodeSourceUnavailable), "got %v", err)
}
