package notifier

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"walletwatch/apps/walletwatch/internal/model"
)

const alertHTML = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Wallet Monitor Alert</title>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; }
      .header { background: #f8f9fa; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
      .transaction { background: #fff; border: 1px solid #e9ecef; border-radius: 8px; padding: 20px; }
      .amount { font-size: 24px; font-weight: bold; color: {{.AmountColor}}; }
      .details { margin-top: 20px; }
      .detail-row { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #f8f9fa; }
      .label { font-weight: bold; }
      .value { font-family: monospace; }
      .footer { margin-top: 20px; padding-top: 20px; border-top: 1px solid #e9ecef; font-size: 12px; color: #6c757d; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        <h2>{{.Emoji}} Wallet Monitor Alert</h2>
        <p>Your monitored wallet <strong>{{.WalletLabel}}</strong> has a new {{.DirectionWord}} transaction</p>
      </div>
      <div class="transaction">
        <div class="amount">{{.Sign}}{{.Value}} {{.Token}}</div>
        <div class="details">
          <div class="detail-row">
            <span class="label">Transaction hash:</span>
            <span class="value">{{.Hash}}</span>
          </div>
          <div class="detail-row">
            <span class="label">From:</span>
            <span class="value">{{.From}}</span>
          </div>
          <div class="detail-row">
            <span class="label">To:</span>
            <span class="value">{{.To}}</span>
          </div>
          <div class="detail-row">
            <span class="label">Time:</span>
            <span class="value">{{.Timestamp}}</span>
          </div>
        </div>
        <div style="margin-top: 20px;">
          <a href="{{.ExplorerLink}}"
             style="background: #007bff; color: white; padding: 10px 20px; text-decoration: none; border-radius: 4px;">
            View transaction
          </a>
        </div>
      </div>
      <div class="footer">
        <p>This is an automated message, please do not reply.</p>
        <p>To stop monitoring this wallet, manage your configs in walletwatch.</p>
      </div>
    </div>
  </body>
</html>
`

const alertText = `Wallet Monitor Alert

Your monitored wallet {{.WalletLabel}} has a new {{.DirectionWord}} transaction

Amount: {{.Sign}}{{.Value}} {{.Token}}
Transaction hash: {{.Hash}}
From: {{.From}}
To: {{.To}}
Time: {{.Timestamp}}

View transaction: {{.ExplorerLink}}
`

var (
	alertHTMLTemplate = htmltemplate.Must(htmltemplate.New("alert_html").Parse(alertHTML))
	alertTextTemplate = texttemplate.Must(texttemplate.New("alert_text").Parse(alertText))
)

type alertData struct {
	WalletLabel   string
	Emoji         string
	DirectionWord string
	Sign          string
	AmountColor   htmltemplate.CSS
	Value         string
	Token         string
	Hash          string
	From          string
	To            string
	Timestamp     string
	ExplorerLink  string
}

// renderTransactionAlert produces the subject, HTML body and plain-text
// body for one transaction. Same inputs always render the same output.
func renderTransactionAlert(walletLabel, explorerURL string, tx model.TransactionEvent) (subject, html, text string, err error) {
	incoming := tx.Direction == model.DirectionIncoming

	data := alertData{
		WalletLabel:   walletLabel,
		Emoji:         "\U0001F4C9", // chart decreasing
		DirectionWord: "outgoing",
		Sign:          "-",
		AmountColor:   htmltemplate.CSS("#dc3545"),
		Value:         tx.Value,
		Token:         tx.Token,
		Hash:          tx.Hash,
		From:          tx.From,
		To:            tx.To,
		Timestamp:     tx.Timestamp.UTC().Format(time.RFC3339),
		ExplorerLink:  fmt.Sprintf("%s/tx/%s", strings.TrimRight(explorerURL, "/"), tx.Hash),
	}
	if incoming {
		data.Emoji = "\U0001F4C8" // chart increasing
		data.DirectionWord = "incoming"
		data.Sign = "+"
		data.AmountColor = htmltemplate.CSS("#28a745")
	}

	subject = fmt.Sprintf("%s %s - %s transaction detected", data.Emoji, walletLabel, data.DirectionWord)

	var htmlBuilder strings.Builder
	if err = alertHTMLTemplate.Execute(&htmlBuilder, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render html body: %w", err)
	}

	var textBuilder strings.Builder
	if err = alertTextTemplate.Execute(&textBuilder, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render text body: %w", err)
	}

	return subject, htmlBuilder.String(), textBuilder.String(), nil
}
