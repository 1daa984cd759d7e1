// internal/metrics/report.go
package metrics

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strconv"
)

// RunReportData is the view model of the HTML run report.
type RunReportData struct {
	Title       string
	RunID       string
	Duration    string
	Summary     Summary
	MetricsJSON template.JS
}

// GenerateReport renders a standalone HTML dashboard for one run summary.
func GenerateReport(runID string, summary Summary) (string, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}

	viewModel := RunReportData{
		Title:       "loadpilot: Load Test Report",
		RunID:       runID,
		Duration:    FormatDuration(summary.Duration),
		Summary:     summary,
		MetricsJSON: template.JS(payload),
	}

	var buf bytes.Buffer
	if err := runReportTemplate.Execute(&buf, viewModel); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var runReportTemplate = template.Must(template.New("run-report").Funcs(template.FuncMap{
	"fixed": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
}).Parse(runReportTemplateHTML))

const runReportTemplateHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
  <style>
    :root {
      --primary: #334155;
      --secondary: #64748B;
      --accent: #3B82F6;
      --light: #F1F5F9;
      --background: #FFFFFF;
      --text: #0F172A;
      --success: #10B981;
      --warning: #F59E0B;
      --border: #E2E8F0;
    }
    body {
      background-color: var(--light);
      color: var(--text);
    }
    .bg-dark {
      background-color: var(--primary) !important;
    }
    .card {
      border: 1px solid var(--border);
      background-color: var(--background);
    }
    .chart-card {
      background: var(--background);
      border-radius: 16px;
      padding: 1.5rem;
      box-shadow: 0 1px 3px rgba(15, 23, 42, 0.1);
      border: 1px solid var(--border);
    }
    .chart-title {
      font-size: 1.5rem;
      font-weight: 700;
      margin-bottom: 0.25rem;
    }
    .chart-subtitle {
      color: var(--secondary);
      margin-bottom: 1.5rem;
    }
    .chart-canvas {
      position: relative;
      height: 420px;
    }
    .stat-value { font-size: 1.75rem; font-weight: 700; }
    .stat-label { color: var(--secondary); }
  </style>
</head>
<body>
  <nav class="navbar navbar-dark bg-dark">
    <div class="container-fluid">
      <span class="navbar-brand mb-0 h1">{{ .Title }}</span>
      <span class="text-light">Run {{ .RunID }}</span>
    </div>
  </nav>
  <main class="container-fluid my-4">
    <section class="row g-3" id="summaryRow">
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Status</div><div class="stat-value" id="status">{{ .Summary.Status }}</div></div></div>
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Samples</div><div class="stat-value">{{ .Summary.TotalSamples }}</div></div></div>
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Pass %</div><div class="stat-value">{{ fixed .Summary.PassPct }}</div></div></div>
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Error rate %</div><div class="stat-value">{{ fixed .Summary.ErrorRate }}</div></div></div>
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Avg / P90 (ms)</div><div class="stat-value">{{ fixed .Summary.AvgResponseMs }} / {{ fixed .Summary.P90ResponseMs }}</div></div></div>
      <div class="col-md-2"><div class="card p-3"><div class="stat-label">Duration</div><div class="stat-value fs-5">{{ .Duration }}</div></div></div>
    </section>

    <section class="mt-4">
      <div class="card shadow-sm">
        <div class="card-header bg-white"><h5 class="mb-0">Per-label aggregates</h5></div>
        <div class="card-body">
          <div class="table-responsive">
            <table class="table table-striped table-hover table-bordered table-sm" id="labelsTable">
              <thead class="table-light">
                <tr><th>Label</th><th>Samples</th><th>Errors</th><th>Error %</th><th>Avg (ms)</th><th>Min (ms)</th><th>Max (ms)</th><th>P90 (ms)</th></tr>
              </thead>
              <tbody>
              {{- range .Summary.Labels }}
                <tr><td>{{ .Label }}</td><td>{{ .Samples }}</td><td>{{ .Errors }}</td><td>{{ fixed .ErrorRatePct }}</td><td>{{ fixed .AvgMs }}</td><td>{{ fixed .MinMs }}</td><td>{{ fixed .MaxMs }}</td><td>{{ fixed .P90Ms }}</td></tr>
              {{- end }}
              </tbody>
            </table>
          </div>
        </div>
      </div>
    </section>

    <section class="mt-4">
      <div class="card shadow-sm chart-card">
        <div class="card-body">
          <div class="chart-title">P90 Response Time vs Virtual Users</div>
          <div class="chart-subtitle">Resampled every {{ .Summary.BucketWidth }}.</div>
          <div class="chart-canvas">
            <canvas id="overlayChart" aria-label="Latency and concurrency overlay chart" role="img"></canvas>
          </div>
        </div>
      </div>
    </section>
    {{- if .Summary.Tokens }}

    <section class="mt-4">
      <div class="card shadow-sm chart-card">
        <div class="card-body">
          <div class="chart-title">Token KPIs</div>
          <div class="chart-subtitle">TTFT avg {{ fixed .Summary.Tokens.TTFT.Avg }} ms, TPOT avg {{ fixed .Summary.Tokens.TPOT.Avg }} ms, TPS avg {{ fixed .Summary.Tokens.TPS.Avg }} over {{ .Summary.Tokens.Count }} requests.</div>
          <div class="chart-canvas">
            <canvas id="tokenChart" aria-label="Token KPI chart" role="img"></canvas>
          </div>
        </div>
      </div>
    </section>
    {{- end }}
  </main>

  <script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.2/dist/chart.umd.min.js"></script>
  <script>
    var metrics = {{ .MetricsJSON }};

    function timeLabels(points) {
      return (points || []).map(function (p) { return new Date(p.time).toLocaleTimeString(); });
    }

    function dualAxis(canvasId, points, series) {
      var canvas = document.getElementById(canvasId);
      if (!canvas || !points || points.length === 0) {
        return;
      }
      var datasets = series.map(function (s) {
        return {
          label: s.label,
          data: points.map(function (p) { return p[s.key]; }),
          yAxisID: s.axis,
          borderColor: s.color,
          backgroundColor: s.color,
          tension: 0.2,
          pointRadius: 0
        };
      });
      new Chart(canvas, {
        type: 'line',
        data: { labels: timeLabels(points), datasets: datasets },
        options: {
          maintainAspectRatio: false,
          interaction: { mode: 'index', intersect: false },
          scales: {
            y: { position: 'left', title: { display: true, text: 'ms' } },
            y1: { position: 'right', grid: { drawOnChartArea: false }, title: { display: true, text: 'virtual users' } }
          }
        }
      });
    }

    dualAxis('overlayChart', metrics.overlay, [
      { key: 'p90ResponseMs', label: 'P90 response (ms)', axis: 'y', color: '#3B82F6' },
      { key: 'concurrency', label: 'Virtual users', axis: 'y1', color: '#F59E0B' }
    ]);
    if (metrics.tokens) {
      dualAxis('tokenChart', metrics.tokens.series, [
        { key: 'ttftMs', label: 'TTFT (ms)', axis: 'y', color: '#3B82F6' },
        { key: 'tpotMs', label: 'TPOT (ms)', axis: 'y', color: '#10B981' },
        { key: 'tps', label: 'Tokens/sec', axis: 'y1', color: '#EF4444' },
        { key: 'concurrency', label: 'Virtual users', axis: 'y1', color: '#F59E0B' }
      ]);
    }
  </script>
</body>
</html>
`
