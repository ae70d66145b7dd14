package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesCounters(t *testing.T) {
	PacketsTotal.WithLabelValues("compress", "up", OutcomeOK).Inc()

	srv := NewServer("127.0.0.1:0", "")
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "schc_packets_total"),
		"scrape output missing engine counters")
}

func TestServerStartRejectsBadAddress(t *testing.T) {
	err := NewServer("256.0.0.1:-1", "").Start(context.Background())
	assert.Error(t, err)
}

func TestServerStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer("127.0.0.1:0", "").Stop(context.Background()))
}
