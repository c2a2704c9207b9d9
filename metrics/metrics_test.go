package metrics

import "testing"

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()

	r.Counter("tx_accepted").Add(3)
	r.Counter("tx_accepted").Inc()
	r.Gauge("queue_depth").Set(7)
	r.Gauge("queue_depth").Add(-2)

	counters, gauges := r.Snapshot()
	if counters["tx_accepted"] != 4 {
		t.Fatalf("expected tx_accepted=4, got %d", counters["tx_accepted"])
	}
	if gauges["queue_depth"] != 5 {
		t.Fatalf("expected queue_depth=5, got %d", gauges["queue_depth"])
	}
}

func TestCounterIgnoresNegativeAdd(t *testing.T) {
	c := NewCounter("x")
	c.Add(5)
	c.Add(-10)
	if c.Value() != 5 {
		t.Fatalf("expected counter to ignore negative add, got %d", c.Value())
	}
}

func TestExporterProvidesHandler(t *testing.T) {
	r := NewRegistry()
	r.Counter("applied_txs").Add(2)
	exp := NewExporter(r)
	if exp.Handler() == nil {
		t.Fatal("expected non-nil handler")
	}
}
