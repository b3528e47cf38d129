package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeAll(c prometheus.Collector) []string {
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	var out []string
	for d := range ch {
		out = append(out, d.String())
	}
	return out
}

func TestNewPoolStatsCollector_DescribeWithoutPool(t *testing.T) {
	// Describe must work before a pool exists; only Collect reads it.
	c := NewPoolStatsCollector(nil, "orderengine")
	require.NotNil(t, c)
	assert.Equal(t, "orderengine", c.service)

	var _ prometheus.Collector = c
	assert.Len(t, describeAll(c), 8)
}

func TestPoolStatsCollector_DescriptorNames(t *testing.T) {
	descs := strings.Join(describeAll(NewPoolStatsCollector(nil, "orderengine")), "\n")

	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_empty_acquire_count_total",
		"db_pool_canceled_acquire_count_total",
	} {
		assert.Contains(t, descs, name)
	}
}
