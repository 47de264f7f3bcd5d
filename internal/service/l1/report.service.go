package l1_service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/repository"
)

// ReportService renders the postmarket session report and hands it to
// the email repository. It does not gather the data itself.
type ReportService interface {
	GenerateSessionReport(in SessionReport) (string, string, error)
	SendSessionReport(ctx context.Context, to string, in SessionReport) error
}

type SessionReport struct {
	Date      time.Time
	Account   domain.Account
	Positions []domain.Position
	Trades    []domain.Trade
	Holds     HoldRoster
	Reconcile *ReconcileResult
	Drift     []PositionDrift
}

type reportServiceHandler struct {
	EmailRepository repository.EmailRepository
}

func NewReportService(emailRepository repository.EmailRepository) ReportService {
	return &reportServiceHandler{
		EmailRepository: emailRepository,
	}
}

var sessionReportTemplate = template.Must(template.New("session_report").Parse(`<html>
<body style="font-family: sans-serif;">
<h2>Session report for {{.Date.Format "2006-01-02"}}</h2>
<p>Equity: {{printf "%.2f" .Account.Equity}} &middot; Cash: {{printf "%.2f" .Account.Cash}} &middot; Buying power: {{printf "%.2f" .Account.BuyingPower}}</p>

<h3>Trades ({{len .Trades}})</h3>
{{if .Trades}}<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Time</th><th>Symbol</th><th>Side</th><th>Quantity</th><th>Price</th><th>Settles</th></tr>
{{range .Trades}}<tr><td>{{.ExecutedAt.Format "15:04:05"}}</td><td>{{.Symbol}}</td><td>{{.Side}}</td><td>{{.Quantity.String}}</td><td>{{.Price.StringFixed 2}}</td><td>{{.SettlementDate.Format "2006-01-02"}}</td></tr>
{{end}}</table>{{else}}<p>No trades.</p>{{end}}

<h3>Positions</h3>
{{if .Positions}}<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Symbol</th><th>Quantity</th><th>Average price</th></tr>
{{range .Positions}}<tr><td>{{.Symbol}}</td><td>{{.Quantity.String}}</td><td>{{.AvgPrice.StringFixed 2}}</td></tr>
{{end}}</table>{{else}}<p>No positions.</p>{{end}}

<h3>Symbol holds</h3>
<ul>{{range $symbol := .Holds.Symbols}}<li>{{$symbol}}: {{index $.Holds $symbol}}</li>{{end}}</ul>

{{with .Reconcile}}<p>Reconciliation: {{.Inserted}} inserted, {{.Deleted}} deleted, {{.ResidualDrift}} unresolved.</p>{{end}}
{{if .Drift}}<h3>Position drift</h3>
<ul>{{range .Drift}}<li>{{.Symbol}}: local {{.Local.String}}, broker {{.Broker.String}}</li>{{end}}</ul>{{end}}
</body>
</html>`))

func (h *reportServiceHandler) GenerateSessionReport(in SessionReport) (string, string, error) {
	if in.Holds == nil {
		in.Holds = HoldRoster{}
	}
	var buf bytes.Buffer
	if err := sessionReportTemplate.Execute(&buf, in); err != nil {
		return "", "", fmt.Errorf("failed to render session report: %w", err)
	}
	subject := fmt.Sprintf("Session report %s: %d trades", in.Date.Format("2006-01-02"), len(in.Trades))
	if (in.Reconcile != nil && in.Reconcile.ResidualDrift > 0) || len(in.Drift) > 0 {
		subject += " (drift)"
	}
	return subject, buf.String(), nil
}

func (h *reportServiceHandler) SendSessionReport(ctx context.Context, to string, in SessionReport) error {
	subject, body, err := h.GenerateSessionReport(in)
	if err != nil {
		return err
	}
	if err := h.EmailRepository.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("failed to send session report: %w", err)
	}
	return nil
}
