package mail

import "fmt"

// The bodies below are deliberately plain; branded templates are a UI
// concern outside this engine. Signing links are only ever rendered
// here, on the way to the notification channel.

// SigningRequestBody builds the client mail carrying the signing link.
func SigningRequestBody(clientName, contractorName, contractTitle, signingLink string) (subject, body string) {
	subject = fmt.Sprintf("%s sent you a contract to sign: %s", contractorName, contractTitle)
	body = fmt.Sprintf(
		`<p>Hello %s,</p>
<p>%s has sent you the contract <strong>%s</strong> for review and signature.</p>
<p><a href="%s">Review and sign the contract</a></p>
<p>The link expires; if it no longer works, ask %s for a new one.</p>`,
		clientName, contractorName, contractTitle, signingLink, contractorName,
	)
	return subject, body
}

// ContractSignedBody notifies the contractor that the client signed.
func ContractSignedBody(contractorName, clientName, contractTitle string) (subject, body string) {
	subject = fmt.Sprintf("%s signed: %s", clientName, contractTitle)
	body = fmt.Sprintf(
		`<p>Hello %s,</p>
<p>%s has signed the contract <strong>%s</strong>.</p>`,
		contractorName, clientName, contractTitle,
	)
	return subject, body
}

// PaymentReceivedBody notifies the contractor about a completed payment.
func PaymentReceivedBody(contractorName, contractTitle string, amountCents int64) (subject, body string) {
	subject = fmt.Sprintf("Payment received for %s", contractTitle)
	body = fmt.Sprintf(
		`<p>Hello %s,</p>
<p>A payment of <strong>%s</strong> was received for the contract <strong>%s</strong>.</p>`,
		contractorName, FormatCents(amountCents), contractTitle,
	)
	return subject, body
}

// ContractCompletedBody is sent to both parties once the final document
// exists.
func ContractCompletedBody(recipientName, contractTitle, documentURL string) (subject, body string) {
	subject = fmt.Sprintf("Contract completed: %s", contractTitle)
	body = fmt.Sprintf(
		`<p>Hello %s,</p>
<p>The contract <strong>%s</strong> is complete. The final document is available here:</p>
<p><a href="%s">Download the final document</a></p>`,
		recipientName, contractTitle, documentURL,
	)
	return subject, body
}

// FormatCents renders a minor-unit amount as a currency string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
