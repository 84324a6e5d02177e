package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncEdit("Add Track")
	m.IncEdit("Add Track")
	m.IncEdit("Rename Track")
	m.IncLoads()
	m.ObserveSave(512)
	m.SetTracks(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.edits.WithLabelValues("Add Track")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.tracks))
}

func TestWriteText(t *testing.T) {
	m := New()
	m.IncUndo()
	m.SetHistoryDepth(3)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "sequencer_undo_total 1")
	assert.Contains(t, out, "sequencer_history_depth 3")
	assert.Contains(t, out, "# HELP sequencer_tracks")
}

func TestHandlerRefreshesGauges(t *testing.T) {
	m := New()
	srv := httptest.NewServer(m.Handler(func() { m.SetTracks(11) }))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sequencer_tracks 11")
}
