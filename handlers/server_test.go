package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-topology-engine/config"
	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
)

// fakeKernel answers overlap and gap queries from its fields. A trim
// returns trimmed when it is set.
type fakeKernel struct {
	overlaps bool
	trimmed  *geo.Geometry
	gaps     []topology.Gap
}

func (k *fakeKernel) SelfIntersects(*geo.Geometry, float64) (bool, error) { return false, nil }

func (k *fakeKernel) Overlaps(_, _ *geo.Geometry, _ float64) (bool, error) {
	return k.overlaps, nil
}

func (k *fakeKernel) DetectGaps([]*geo.Geometry, float64) ([]topology.Gap, error) {
	return k.gaps, nil
}

func (k *fakeKernel) DetectDangles(*geo.Geometry, []*geo.Geometry, float64) ([]topology.Dangle, error) {
	return nil, nil
}

func (k *fakeKernel) Simplify(g *geo.Geometry, _ float64) (*geo.Geometry, error) {
	return g.Clone(), nil
}

func (k *fakeKernel) Difference(a, _ *geo.Geometry) (*geo.Geometry, error) {
	if k.trimmed != nil {
		return k.trimmed.Clone(), nil
	}
	return a.Clone(), nil
}

func (k *fakeKernel) Union(a, _ *geo.Geometry) (*geo.Geometry, error) { return a.Clone(), nil }

func (k *fakeKernel) Covers(_, _ *geo.Geometry) (bool, error) { return true, nil }

const overlapping = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
	{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"Polygon","coordinates":[[[1,1],[3,1],[3,3],[1,3],[1,1]]]}}
]}`

func newTestServer(k *fakeKernel) http.Handler {
	return NewServer(k, config.Default(), zerolog.Nop()).Routes()
}

func post(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsKept(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestCheckRawDocument(t *testing.T) {
	h := newTestServer(&fakeKernel{overlaps: true})

	rec := post(t, h, "/check", overlapping)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report topology.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, topology.ErrorOverlap, report.Errors[0].ErrorType)
	assert.Equal(t, 0, report.Errors[0].FeatureIndex)
	assert.Nil(t, report.Repaired)
}

func TestCheckEnvelopeWithRules(t *testing.T) {
	h := newTestServer(&fakeKernel{overlaps: true})

	body := `{"document":` + overlapping + `,"rules":[{"ruleType":"must_be_valid"}],"options":{"tolerance":0.01}}`
	rec := post(t, h, "/check", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report topology.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestCheckWithAutomaticFixTruncates(t *testing.T) {
	trimmed := geo.NewPolygon([][]geo.Position{{{0, 0}, {1.123456789, 0}, {1, 1}, {0, 0}}})
	h := newTestServer(&fakeKernel{overlaps: true, trimmed: trimmed})

	rec := post(t, h, "/check", `{"document":`+overlapping+`,"options":{"fixAutomatically":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report topology.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.NotNil(t, report.Repaired)
	require.Len(t, report.Repaired.Features, 2)
	assert.Equal(t, 1.1234568, report.Repaired.Features[0].Geometry.Lines[0][1][0])
	assert.Len(t, report.RepairLog, 1)
}

func TestCheckTruncatesGapGeometry(t *testing.T) {
	gap := geo.NewPolygon([][]geo.Position{{{2, 1}, {2.123456789, 1}, {2, 2}, {2, 1}}})
	h := newTestServer(&fakeKernel{gaps: []topology.Gap{{Geometry: gap, Adjacent: []int{1, 0}}}})

	rec := post(t, h, "/check", overlapping)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report topology.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Errors, 1)

	te := report.Errors[0]
	assert.Equal(t, topology.ErrorGap, te.ErrorType)
	assert.Equal(t, -1, te.FeatureIndex)
	assert.True(t, report.Valid, "gaps are warnings")
	assert.Equal(t, 2.1234568, te.Geometry.Lines[0][1][0])
	require.NotNil(t, te.SuggestedFix)
	require.NotNil(t, te.SuggestedFix.Gap)
	assert.Equal(t, []int{0, 1}, te.SuggestedFix.Gap.AdjacentFeatures)
	assert.Equal(t, 2.1234568, te.SuggestedFix.Gap.Gap.Lines[0][1][0])
	assert.Equal(t, 2.123456789, gap.Lines[0][1][0])
}

func TestCheckInvalidDocument(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	for name, body := range map[string]string{
		"unknown type":     `{"type":"Hexagon"}`,
		"missing document": `{"document":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, "/check", body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var report topology.Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.False(t, report.Valid)
			require.Len(t, report.Errors, 1)
			assert.Equal(t, topology.ErrorInvalidInput, report.Errors[0].ErrorType)
			assert.Equal(t, topology.SeverityCritical, report.Errors[0].Severity)
		})
	}
}

func TestCheckBadRequests(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	for name, body := range map[string]string{
		"malformed json": `{"type":`,
		"empty body":     ``,
		"bad options":    `{"document":{"type":"FeatureCollection","features":[]},"options":{"tolerance":"big"}}`,
		"bad nesting":    `{"type":"Point","coordinates":[[1,2]]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, "/check", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestWrongMethod(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/check", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCheckMultipart(t *testing.T) {
	h := newTestServer(&fakeKernel{overlaps: true})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "parcels.geojson")
	require.NoError(t, err)
	_, err = fw.Write([]byte(overlapping))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("rules", `[{"ruleType":"must_not_overlap"},{"ruleType":"must_be_valid"}]`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/check", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report topology.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Errors, 1)
	assert.Equal(t, topology.ErrorOverlap, report.Errors[0].ErrorType)
}

func TestRepairChecksFirst(t *testing.T) {
	trimmed := geo.NewPolygon([][]geo.Position{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}})
	h := newTestServer(&fakeKernel{overlaps: true, trimmed: trimmed})

	rec := post(t, h, "/repair", overlapping)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result topology.RepairResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.FixedCount)
	assert.Zero(t, result.FailedCount)
	require.NotNil(t, result.RepairedData)
	require.Len(t, result.RepairedData.Features, 2)
	assert.Equal(t, trimmed.Lines, result.RepairedData.Features[0].Geometry.Lines)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Valid)
}

func TestRepairWithGivenErrors(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	body := `{"document":` + overlapping + `,"errors":[]}`
	rec := post(t, h, "/repair", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result topology.RepairResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Zero(t, result.FixedCount)
	assert.Empty(t, result.RepairLog)
	assert.Len(t, result.RepairedData.Features, 2)
}

func TestRepairInvalidDocument(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	rec := post(t, h, "/repair", `{"type":"Hexagon"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = post(t, h, "/repair", `{"document":{"type":"Hexagon"},"errors":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRepairZip(t *testing.T) {
	h := newTestServer(&fakeKernel{overlaps: true})

	rec := post(t, h, "/repair?format=zip", overlapping)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "repaired.zip")

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"repaired.dbf", "repaired.json", "repaired.shp", "repaired.shx"}, names)
}

func TestRepairZipWithoutShapes(t *testing.T) {
	h := newTestServer(&fakeKernel{})

	rec := post(t, h, "/repair?format=zip", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":null}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecoverer(t *testing.T) {
	h := RequestLogger(zerolog.Nop(), Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("GEOS exploded")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
