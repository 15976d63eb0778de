package controllers

// WebhookSignatureHeader exposes the webhook signature header name to
// external test packages.
const WebhookSignatureHeader = webhookSignatureHeader
