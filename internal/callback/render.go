package callback

import (
	"bytes"
	"html/template"
	"net/http"
)

var outcomeTemplate = template.Must(template.New("outcome").Parse(`<div class="verification-outcome" data-outcome="{{.Outcome}}" style="font-family:sans-serif; text-align:center; padding:50px;">
{{- if eq .Outcome "successful"}}
    <h2 style="color: #27ae60;">Success!</h2>
    <p>User <strong>{{.CorrelationID}}</strong> has been verified.</p>
{{- else if eq .Outcome "cancelled"}}
    <h2 style="color: #e74c3c;">Verification Cancelled</h2>
    <p>Onboarding ID: <strong>{{.CorrelationID}}</strong></p>
    <button onclick="history.back()">Try Again</button>
{{- else if eq .Outcome "expired"}}
    <h2 style="color: #e67e22;">Session Expired</h2>
    <p>You took too long to verify. Please restart.</p>
    <p>Onboarding ID: <strong>{{.CorrelationID}}</strong></p>
{{- else}}
    <h2>Verification Status: {{if .RawStatus}}{{.RawStatus}}{{else}}Unknown{{end}}</h2>
    {{- if .CorrelationID}}
    <p>Onboarding ID: <strong>{{.CorrelationID}}</strong></p>
    {{- end}}
{{- end}}
</div>
`))

const fallbackPage = `<h2>Verification Status: Unknown</h2>`

// Render возвращает HTTP-статус и HTML-фрагмент для итога. Просроченная сессия отдается с 408.
func Render(event Event) (int, []byte) {
	status := http.StatusOK
	if event.Outcome == OutcomeExpired {
		status = http.StatusRequestTimeout
	}

	var buf bytes.Buffer
	if err := outcomeTemplate.Execute(&buf, event); err != nil {
		return status, []byte(fallbackPage)
	}

	return status, buf.Bytes()
}
